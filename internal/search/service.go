package search

import (
	"context"
	"log"

	"snipshelf/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to SQL.
type Service struct {
	meili      *Meili
	fallback   Searcher
	onFallback func()
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured. onFallback, if set, is called whenever SQL answers a query.
func NewService(meili *Meili, fallback Searcher, onFallback func()) *Service {
	return &Service{meili: meili, fallback: fallback, onFallback: onFallback}
}

// Search tries Meilisearch if healthy, otherwise falls back to SQL.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "meilisearch"}
		}
		log.Printf("search: meilisearch error, falling back to sql: %v", err)
	}

	if s.onFallback != nil {
		s.onFallback()
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: sql error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Engine: "sql"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "sql"}
}

// IndexItem indexes an item (fire-and-forget to Meilisearch).
func (s *Service) IndexItem(item store.Item) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := recordFor(item)
	go func() {
		if err := s.meili.IndexItems([]ItemRecord{record}); err != nil {
			log.Printf("search: index item %s: %v", record.ID, err)
		}
	}()
}

// DeleteItem removes an item from the search index (fire-and-forget).
func (s *Service) DeleteItem(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteItem(id); err != nil {
			log.Printf("search: delete item %s: %v", id, err)
		}
	}()
}

// ItemLister streams every stored item for a reindex.
type ItemLister interface {
	ListAllItems(ctx context.Context) ([]store.Item, error)
}

// ReindexAll pushes every stored item to Meilisearch in chunks.
func (s *Service) ReindexAll(ctx context.Context, lister ItemLister) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	items, err := lister.ListAllItems(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	const chunk = 1000
	for start := 0; start < len(items); start += chunk {
		end := min(start+chunk, len(items))
		records := make([]ItemRecord, 0, end-start)
		for _, item := range items[start:end] {
			records = append(records, recordFor(item))
		}
		if err := s.meili.IndexItems(records); err != nil {
			log.Printf("search: reindex items: %v", err)
			return
		}
	}
	log.Printf("search: reindexed %d items", len(items))
}

func recordFor(item store.Item) ItemRecord {
	return ItemRecord{ID: item.ID, FolderID: item.FolderID, OwnerID: item.OwnerID, Body: item.Body}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
