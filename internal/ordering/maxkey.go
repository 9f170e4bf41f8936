package ordering

// MaxKey returns the highest ordinal key present in items, or 0 when the list is
// empty or no item carries a key. Appending uses MaxKey(items)+1.
func MaxKey(items []Item) int {
	max := 0
	for _, item := range items {
		if item.Key != nil && *item.Key > max {
			max = *item.Key
		}
	}
	return max
}
