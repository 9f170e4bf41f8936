package ordering

import "sort"

// Normalize returns a copy of items in canonical order with keys 1..N.
//
// Keyed items come first, ascending by key. Unkeyed (legacy) items follow,
// ascending by CreatedAt. Ties in either block keep the original slice order.
//
// A missing CreatedAt ties with every other time. Since ties never reorder, an
// undated unkeyed item keeps its slice position and acts as a barrier: the dated
// items before it and after it are sorted as separate runs and never cross it.
// The input is not modified.
func Normalize(items []Item) []Item {
	if len(items) == 0 {
		return []Item{}
	}

	keyed := make([]Item, 0, len(items))
	unkeyed := make([]Item, 0)
	for _, item := range items {
		if item.Key != nil {
			keyed = append(keyed, item)
		} else {
			unkeyed = append(unkeyed, item)
		}
	}

	sort.SliceStable(keyed, func(i, j int) bool {
		return *keyed[i].Key < *keyed[j].Key
	})
	sortByCreated(unkeyed)

	out := make([]Item, 0, len(items))
	for _, item := range keyed {
		out = append(out, item.withKey(len(out)+1))
	}
	for _, item := range unkeyed {
		out = append(out, item.withKey(len(out)+1))
	}
	return out
}

func sortByCreated(items []Item) {
	start := 0
	for i := 0; i <= len(items); i++ {
		if i < len(items) && !items[i].CreatedAt.IsZero() {
			continue
		}
		run := items[start:i]
		sort.SliceStable(run, func(a, b int) bool {
			return run[a].CreatedAt.Before(run[b].CreatedAt)
		})
		start = i + 1
	}
}

// NeedsBackfill reports whether any item lacks an ordinal key.
func NeedsBackfill(items []Item) bool {
	for _, item := range items {
		if item.Key == nil {
			return true
		}
	}
	return false
}

// DuplicateKeys returns, ascending, every key value held by more than one item.
// Duplicates are not a designed state; they point at an upstream write that
// bypassed the scope transaction.
func DuplicateKeys(items []Item) []int {
	seen := make(map[int]int, len(items))
	for _, item := range items {
		if item.Key != nil {
			seen[*item.Key]++
		}
	}
	var dups []int
	for key, count := range seen {
		if count > 1 {
			dups = append(dups, key)
		}
	}
	sort.Ints(dups)
	return dups
}

// Diff lists the updates needed to move stored keys to final keys. An item
// appears when its final key differs from its stored key or it had none. Items
// present only in stored are ignored; items present only in final are included.
// Order follows final.
func Diff(stored, final []Item) []Update {
	before := make(map[string]*int, len(stored))
	for _, item := range stored {
		before[item.ID] = item.Key
	}
	updates := make([]Update, 0)
	for _, item := range final {
		if item.Key == nil {
			continue
		}
		prev, ok := before[item.ID]
		if ok && prev != nil && *prev == *item.Key {
			continue
		}
		update := Update{ID: item.ID, Key: *item.Key}
		if prev != nil {
			update.Prev = KeyOf(*prev)
		}
		updates = append(updates, update)
	}
	return updates
}

// PlanBackfill lists the writes that give every unkeyed item in stored a key
// without touching keyed items. Unkeyed items take MaxKey(stored)+1 upward in
// their normalized order, so the stored keys read back in the order Normalize
// produces. Gaps and duplicates among keyed items are left for the next
// transactional write to repair.
func PlanBackfill(stored []Item) []Update {
	unkeyed := make(map[string]bool)
	for _, item := range stored {
		if item.Key == nil {
			unkeyed[item.ID] = true
		}
	}
	updates := make([]Update, 0, len(unkeyed))
	if len(unkeyed) == 0 {
		return updates
	}
	next := MaxKey(stored)
	for _, item := range Normalize(stored) {
		if !unkeyed[item.ID] {
			continue
		}
		next++
		updates = append(updates, Update{ID: item.ID, Key: next})
	}
	return updates
}
