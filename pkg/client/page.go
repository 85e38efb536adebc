package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Sternrassler/playlist-overlap/pkg/collection"
	"github.com/Sternrassler/playlist-overlap/pkg/pagination"
)

// maxPageBytes bounds the body read for a single page.
const maxPageBytes = 8 << 20

type pageJSON struct {
	Items  *[]itemJSON `json:"items"`
	Total  *int        `json:"total"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

// itemJSON covers both listing shapes. Track listings wrap the item in
// "track", which may be null for removed entries. Playlist listings are flat.
type itemJSON struct {
	Track json.RawMessage `json:"track"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Owner *ownerJSON      `json:"owner"`
}

type trackJSON struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	IsLocal bool         `json:"is_local"`
	Artists []artistJSON `json:"artists"`
}

type artistJSON struct {
	Name string `json:"name"`
}

type ownerJSON struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// decodePage parses a page body. Missing items or total, or a body that is
// not JSON, yields pagination.ErrMalformedResponse.
func decodePage(body io.Reader) (*collection.Page, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var raw pageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", pagination.ErrMalformedResponse, err)
	}
	if raw.Items == nil {
		return nil, fmt.Errorf("%w: missing items", pagination.ErrMalformedResponse)
	}
	if raw.Total == nil {
		return nil, fmt.Errorf("%w: missing total", pagination.ErrMalformedResponse)
	}

	page := &collection.Page{
		Items:  make([]collection.Item, 0, len(*raw.Items)),
		Total:  *raw.Total,
		Offset: raw.Offset,
		Limit:  raw.Limit,
	}
	for i, it := range *raw.Items {
		item, err := it.toItem()
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", pagination.ErrMalformedResponse, i, err)
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

func (it itemJSON) toItem() (collection.Item, error) {
	if it.Track == nil {
		creator := ""
		if it.Owner != nil {
			creator = it.Owner.DisplayName
			if creator == "" {
				creator = it.Owner.ID
			}
		}
		return collection.Item{
			ID:         it.ID,
			Descriptor: collection.Descriptor{Name: it.Name, Creator: creator},
			Comparable: it.ID != "",
		}, nil
	}

	if bytes.Equal(bytes.TrimSpace(it.Track), []byte("null")) {
		return collection.Item{}, nil
	}

	var track trackJSON
	if err := json.Unmarshal(it.Track, &track); err != nil {
		return collection.Item{}, err
	}

	var credits []string
	for _, artist := range track.Artists {
		if artist.Name != "" {
			credits = append(credits, artist.Name)
		}
	}
	creator := ""
	if len(credits) > 0 {
		creator = credits[0]
	}
	return collection.Item{
		ID:         track.ID,
		Descriptor: collection.Descriptor{Name: track.Name, Creator: creator},
		Credits:    credits,
		Comparable: !track.IsLocal && track.ID != "",
	}, nil
}
