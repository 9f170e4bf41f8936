// Package ordering assigns, maintains, and repairs the relative order of items
// within a scope. Everything here is synchronous and free of I/O except for the
// Writer passed to the Migrator.
package ordering

import "time"

// Scope identifies the (folder, owner) pair inside which ordinal keys are
// unique and ordered.
type Scope struct {
	FolderID string `json:"folderId"`
	OwnerID  string `json:"ownerId"`
}

func (s Scope) String() string {
	return s.FolderID + "/" + s.OwnerID
}

// Item is one ordered record. Key is nil for legacy rows that predate ordering.
// Payload is carried through untouched.
type Item struct {
	ID        string
	Scope     Scope
	Key       *int
	CreatedAt time.Time
	Payload   any
}

// Keyed reports whether the item carries an ordinal key.
func (i Item) Keyed() bool {
	return i.Key != nil
}

// KeyValue returns the ordinal key, or 0 when absent.
func (i Item) KeyValue() int {
	if i.Key == nil {
		return 0
	}
	return *i.Key
}

// withKey returns a copy of the item holding its own key value, so callers never
// share key storage with the input slice.
func (i Item) withKey(key int) Item {
	k := key
	i.Key = &k
	return i
}

// Update is a single ordinal change: record ID receives Key. Prev is the key the
// planner observed for the record (nil when it had none); batch writers use it
// as a compare-and-set guard.
type Update struct {
	ID   string `json:"id"`
	Key  int    `json:"key"`
	Prev *int   `json:"prev,omitempty"`
}

// KeyOf is a small helper for building items with a present key.
func KeyOf(v int) *int {
	return &v
}
