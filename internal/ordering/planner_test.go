package ordering

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abc() []Item {
	return []Item{keyed("A", 1), keyed("B", 2), keyed("C", 3)}
}

func TestPlanInsertAfterScenarios(t *testing.T) {
	cases := []struct {
		name      string
		anchor    string
		insertKey int
		updates   []Update
	}{
		{name: "after first shifts tail", anchor: "A", insertKey: 2, updates: []Update{{ID: "B", Key: 3, Prev: KeyOf(2)}, {ID: "C", Key: 4, Prev: KeyOf(3)}}},
		{name: "after middle", anchor: "B", insertKey: 3, updates: []Update{{ID: "C", Key: 4, Prev: KeyOf(3)}}},
		{name: "after last", anchor: "C", insertKey: 4, updates: []Update{}},
		{name: "append", anchor: AnchorEnd, insertKey: 4, updates: []Update{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := PlanInsertAfter(abc(), tc.anchor)
			require.NoError(t, err)
			assert.Equal(t, tc.insertKey, plan.InsertKey)
			assert.Equal(t, tc.updates, plan.Updates)
		})
	}
}

func TestPlanInsertAfterUnknownAnchor(t *testing.T) {
	_, err := PlanInsertAfter(abc(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAnchorNotFound))

	var anchorErr *AnchorNotFoundError
	require.ErrorAs(t, err, &anchorErr)
	assert.Equal(t, "nonexistent", anchorErr.AnchorID)
	assert.Equal(t, testScope, anchorErr.Scope)
}

func TestPlanInsertAfterEmptyScope(t *testing.T) {
	plan, err := PlanInsertAfter(nil, AnchorEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.InsertKey)
	assert.Empty(t, plan.Updates)

	_, err = PlanInsertAfter(nil, "A")
	assert.ErrorIs(t, err, ErrAnchorNotFound)
}

func TestPlanInsertAfterRejectsUnnormalized(t *testing.T) {
	items := []Item{keyed("A", 1), legacy("B", time.Time{})}
	_, err := PlanInsertAfter(items, "A")
	assert.ErrorIs(t, err, ErrUnkeyedItem)
}

func TestPlanInsertionLocality(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 100; i++ {
		n := rng.Intn(25) + 1
		items := Normalize(randomScope(rng, n))
		k := rng.Intn(n) + 1 // 1-indexed anchor position

		plan, err := PlanInsertAfter(items, items[k-1].ID)
		require.NoError(t, err)
		require.Len(t, plan.Updates, n-k)
		assert.Equal(t, k+1, plan.InsertKey)

		head := make(map[string]bool, k)
		for _, item := range items[:k] {
			head[item.ID] = true
		}
		for _, u := range plan.Updates {
			assert.False(t, head[u.ID], "update %s touches an item at or before the anchor", u.ID)
		}

		appended, err := PlanInsertAfter(items, AnchorEnd)
		require.NoError(t, err)
		assert.Equal(t, n+1, appended.InsertKey)
		assert.Empty(t, appended.Updates)
	}
}

func TestPlanApplyLeavesRoomForNewItem(t *testing.T) {
	items := abc()
	plan, err := PlanInsertAfter(items, "A")
	require.NoError(t, err)

	shifted := plan.Apply(items)
	assert.Equal(t, []int{1, 3, 4}, keys(shifted))
	assert.Equal(t, []int{1, 2, 3}, keys(items), "input must not be modified")

	withNew := append([]Item{shifted[0], keyed("NEW", plan.InsertKey)}, shifted[1:]...)
	assert.Equal(t, []string{"A", "NEW", "B", "C"}, ids(Normalize(withNew)))
	assert.Equal(t, plan.Updates, Diff(items, shifted))
}
