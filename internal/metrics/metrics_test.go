package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"snipshelf/internal/ordering"
)

var _ ordering.Observer = (*Metrics)(nil)

func TestObserveMigrationSplitsOutcomes(t *testing.T) {
	m := New()
	m.ObserveMigration(ordering.ModeBatch, 3, nil)
	m.ObserveMigration(ordering.ModeBatch, 2, nil)
	m.ObserveMigration(ordering.ModeBatch, 4, errors.New("boom"))

	if got := testutil.ToFloat64(m.migrations.WithLabelValues("batch", "written")); got != 2 {
		t.Fatalf("expected 2 written migrations, got %v", got)
	}
	if got := testutil.ToFloat64(m.migrations.WithLabelValues("batch", "failed")); got != 1 {
		t.Fatalf("expected 1 failed migration, got %v", got)
	}
	if got := testutil.ToFloat64(m.migratedKeys.WithLabelValues("batch")); got != 5 {
		t.Fatalf("expected 5 migrated keys, got %v", got)
	}
}

func TestCacheAndInsertCounters(t *testing.T) {
	m := New()
	m.ObserveScopeCache(true)
	m.ObserveScopeCache(false)
	m.ObserveScopeCache(false)
	m.ObserveInsertAttempt("aborted")
	m.ObserveInsertAttempt("committed")
	m.ObserveSearchFallback()

	if got := testutil.ToFloat64(m.scopeCache.WithLabelValues("false")); got != 2 {
		t.Fatalf("expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.insertAttempts.WithLabelValues("aborted")); got != 1 {
		t.Fatalf("expected 1 aborted attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.searchFallbacks); got != 1 {
		t.Fatalf("expected 1 fallback, got %v", got)
	}
}

func TestHandlerExposesInstruments(t *testing.T) {
	m := New()
	m.ObservePlan(3)
	m.ObserveInsertAttempt("committed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"snipshelf_ordering_plan_updates_bucket", "snipshelf_ordering_insert_attempts_total", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}
