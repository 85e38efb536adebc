// Package main provides the overlap CLI.
//
// overlap compares the music of several users or playlists on a
// music catalog and reports the tracks they share.
//
// Usage:
//
//	overlap compare <user> <user>...
//	overlap playlists [--mode exact|consensus] <link> <link>...
//	overlap creators <link>
//	overlap serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
