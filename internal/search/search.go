// Package search indexes snippet bodies in Meilisearch and answers queries,
// falling back to SQL when the engine is unreachable.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	FolderID string `json:"folderId"`
	OwnerID  string `json:"ownerId"`
	Snippet  string `json:"snippet"`
}

// Query describes a search request. FolderIDs limits hits to folders the
// caller may read and must not be empty.
type Query struct {
	Text      string
	FolderIDs []string
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ItemRecord is the data we index for an item.
type ItemRecord struct {
	ID       string `json:"id"`
	FolderID string `json:"folderId"`
	OwnerID  string `json:"ownerId"`
	Body     string `json:"body"`
}
