package collect

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"uitf-catalog/internal/models"
)

// fakeListing serves a fixed result count and synthesized pages, recording
// which pages were fetched.
type fakeListing struct {
	count        int
	pageSize     int
	fetchedPages []int
	countCalls   int
}

func (f *fakeListing) ResultCount(ctx context.Context, query string) (int, error) {
	f.countCalls++
	return f.count, nil
}

func (f *fakeListing) FetchPage(ctx context.Context, query string, page int) ([]models.RawListingRecord, error) {
	f.fetchedPages = append(f.fetchedPages, page)
	start := (page - 1) * f.pageSize
	end := start + f.pageSize
	if end > f.count {
		end = f.count
	}
	var rows []models.RawListingRecord
	for i := start; i < end; i++ {
		rows = append(rows, models.RawListingRecord{
			Symbol:  fmt.Sprintf("%s%d:PM", query, i),
			Name:    fmt.Sprintf("%s fund %d", query, i),
			Country: "Philippines",
			Type:    "Open-End Fund",
		})
	}
	return rows, nil
}

func TestPageCount(t *testing.T) {
	cases := []struct {
		results, pageSize, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{45, 20, 3},
		{-3, 20, 0},
	}
	for _, tc := range cases {
		if got := PageCount(tc.results, tc.pageSize); got != tc.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tc.results, tc.pageSize, got, tc.want)
		}
	}
}

func TestCollectFlattensAllPages(t *testing.T) {
	src := &fakeListing{count: 45, pageSize: 20}
	c := New(src, 20, zerolog.Nop())

	records, err := c.Collect(context.Background(), []string{"uitf"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(records) != 45 {
		t.Errorf("expected 45 records, got %d", len(records))
	}
	if len(src.fetchedPages) != 3 {
		t.Errorf("expected 3 page fetches, got %v", src.fetchedPages)
	}
}

func TestCollectZeroResultsShortCircuits(t *testing.T) {
	src := &fakeListing{count: 0, pageSize: 20}
	c := New(src, 20, zerolog.Nop())

	records, err := c.Collect(context.Background(), []string{"nothing"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
	if len(src.fetchedPages) != 0 {
		t.Errorf("zero results must not fetch any page, fetched %v", src.fetchedPages)
	}
}

func TestCollectUnionsQueriesWithoutSuppression(t *testing.T) {
	src := &fakeListing{count: 5, pageSize: 20}
	c := New(src, 20, zerolog.Nop())

	// Same query twice: the union keeps both result sets; dedup is a
	// downstream concern.
	records, err := c.Collect(context.Background(), []string{"uitf", "uitf"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(records) != 10 {
		t.Errorf("expected 10 records before dedup, got %d", len(records))
	}

	deduped := models.DedupeListings(records)
	if len(deduped) != 5 {
		t.Errorf("expected 5 records after dedup, got %d", len(deduped))
	}
}
