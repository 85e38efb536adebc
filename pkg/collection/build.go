package collection

// Build folds pages into a Collection in page order, then item order.
// Non-comparable items are dropped. When an identifier recurs, the later
// occurrence overwrites the earlier one.
func Build(pages ...*Page) Collection {
	size := 0
	for _, page := range pages {
		if page != nil {
			size += len(page.Items)
		}
	}

	result := make(Collection, size)
	for _, page := range pages {
		if page == nil {
			continue
		}
		for _, item := range page.Items {
			if !item.Comparable || item.ID == "" {
				continue
			}
			result[item.ID] = item.Descriptor
		}
	}
	return result
}

// Items flattens pages into a single slice, keeping order.
func Items(pages []*Page) []Item {
	var items []Item
	for _, page := range pages {
		if page == nil {
			continue
		}
		items = append(items, page.Items...)
	}
	return items
}
