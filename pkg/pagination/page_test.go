package pagination

import (
	"testing"
)

func TestAppendQuery(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		index    int
		pageSize int
		want     string
	}{
		{
			name:     "existing query",
			base:     "/mods/search?categoryId=1",
			index:    0,
			pageSize: 50,
			want:     "/mods/search?categoryId=1&index=0&pageSize=50",
		},
		{
			name:     "dangling question mark",
			base:     "/mods/123/files?",
			index:    0,
			pageSize: 50,
			want:     "/mods/123/files?index=0&pageSize=50",
		},
		{
			name:     "no query",
			base:     "/games",
			index:    100,
			pageSize: 50,
			want:     "/games?index=100&pageSize=50",
		},
		{
			name:     "dangling ampersand",
			base:     "/categories?gameId=432&",
			index:    50,
			pageSize: 25,
			want:     "/categories?gameId=432&index=50&pageSize=25",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendQuery(tt.base, tt.index, tt.pageSize); got != tt.want {
				t.Errorf("AppendQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage([]byte(`{"data":[{"id":1},{"id":2}],"pagination":{"index":0,"pageSize":50,"resultCount":2,"totalCount":2}}`), "/games?index=0&pageSize=50")
	if err != nil {
		t.Fatalf("ParsePage() error = %v", err)
	}
	if !page.Paginated() {
		t.Fatal("Paginated() = false, want true")
	}
	if page.Pagination.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", page.Pagination.TotalCount)
	}
	if page.SourceURL != "/games?index=0&pageSize=50" {
		t.Errorf("SourceURL = %q", page.SourceURL)
	}

	items, err := page.Items()
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Items() len = %d, want 2", len(items))
	}

	type record struct {
		ID int `json:"id"`
	}
	records, err := Decode[record](page)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if records[1].ID != 2 {
		t.Errorf("Decode()[1].ID = %d, want 2", records[1].ID)
	}
}

func TestParsePage_Invalid(t *testing.T) {
	if _, err := ParsePage([]byte(`[1,2,3]`), "/games"); err == nil {
		t.Error("ParsePage() of a bare array should fail")
	}

	page, err := ParsePage([]byte(`{"data":{"id":5}}`), "/games/5")
	if err != nil {
		t.Fatalf("ParsePage() error = %v", err)
	}
	if _, err := page.Items(); err == nil {
		t.Error("Items() on an object should fail")
	}

	type record struct {
		ID int `json:"id"`
	}
	one, err := DecodeOne[record](page)
	if err != nil {
		t.Fatalf("DecodeOne() error = %v", err)
	}
	if one.ID != 5 {
		t.Errorf("DecodeOne().ID = %d, want 5", one.ID)
	}
}
