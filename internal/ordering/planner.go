package ordering

import "fmt"

// AnchorEnd is the anchor id meaning "append after the last item".
const AnchorEnd = ""

// Plan is the result of PlanInsertAfter: the key for the new item plus the key
// changes for every item at or after the insertion point.
type Plan struct {
	InsertKey int      `json:"insertKey"`
	Updates   []Update `json:"updates"`
}

// PlanInsertAfter computes the key changes needed to place a new item directly
// after anchorID in a normalized list. AnchorEnd appends.
//
// Only items positioned after the anchor are shifted, so the number of updates is
// the tail length, never the scope size. The list must be normalized; an item
// without a key yields ErrUnkeyedItem. An unknown anchor yields an
// *AnchorNotFoundError (errors.Is ErrAnchorNotFound).
func PlanInsertAfter(items []Item, anchorID string) (Plan, error) {
	for _, item := range items {
		if item.Key == nil {
			return Plan{}, fmt.Errorf("plan insert: %q: %w", item.ID, ErrUnkeyedItem)
		}
	}

	if anchorID == AnchorEnd {
		return Plan{InsertKey: MaxKey(items) + 1, Updates: []Update{}}, nil
	}

	anchor := -1
	for i, item := range items {
		if item.ID == anchorID {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		var scope Scope
		if len(items) > 0 {
			scope = items[0].Scope
		}
		return Plan{}, &AnchorNotFoundError{AnchorID: anchorID, Scope: scope}
	}

	insertKey := *items[anchor].Key + 1
	updates := make([]Update, 0, len(items)-anchor-1)
	for _, item := range items[anchor+1:] {
		if *item.Key >= insertKey {
			updates = append(updates, Update{ID: item.ID, Key: *item.Key + 1, Prev: KeyOf(*item.Key)})
		}
	}
	return Plan{InsertKey: insertKey, Updates: updates}, nil
}

// Apply returns a copy of items with the plan's updates applied. The new item
// itself is not part of the result.
func (p Plan) Apply(items []Item) []Item {
	shifted := make(map[string]int, len(p.Updates))
	for _, u := range p.Updates {
		shifted[u.ID] = u.Key
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if key, ok := shifted[item.ID]; ok {
			item = item.withKey(key)
		}
		out = append(out, item)
	}
	return out
}
