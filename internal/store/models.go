package store

import (
	"time"

	"snipshelf/internal/ordering"
)

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

type Folder struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	// Role is the caller's role when listed through ListFoldersForUser.
	Role string
}

type FolderShare struct {
	FolderID  string
	UserID    string
	Role      string // 'viewer' or 'editor'
	GrantedBy string
	CreatedAt time.Time
}

// Item is a stored snippet. SeqNo is nil for rows written before ordering existed.
type Item struct {
	ID        string    `json:"id"`
	FolderID  string    `json:"folderId"`
	OwnerID   string    `json:"ownerId"`
	Body      string    `json:"body"`
	SeqNo     *int      `json:"seqNo"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (i Item) Scope() ordering.Scope {
	return ordering.Scope{FolderID: i.FolderID, OwnerID: i.OwnerID}
}

// Ordered converts stored items into ordering items, carrying the row as payload.
func Ordered(items []Item) []ordering.Item {
	out := make([]ordering.Item, 0, len(items))
	for _, item := range items {
		out = append(out, ordering.Item{
			ID:        item.ID,
			Scope:     item.Scope(),
			Key:       item.SeqNo,
			CreatedAt: item.CreatedAt,
			Payload:   item,
		})
	}
	return out
}

// FromOrdered converts back, taking each row's SeqNo from the ordering key.
func FromOrdered(items []ordering.Item) []Item {
	out := make([]Item, 0, len(items))
	for _, ordered := range items {
		item, _ := ordered.Payload.(Item)
		item.ID = ordered.ID
		item.FolderID = ordered.Scope.FolderID
		item.OwnerID = ordered.Scope.OwnerID
		if ordered.Key != nil {
			item.SeqNo = ordering.KeyOf(*ordered.Key)
		} else {
			item.SeqNo = nil
		}
		out = append(out, item)
	}
	return out
}
