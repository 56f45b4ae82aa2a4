package pagination

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Meta is the pagination block of a list response.
type Meta struct {
	Index       int `json:"index"`
	PageSize    int `json:"pageSize"`
	ResultCount int `json:"resultCount"`
	TotalCount  int `json:"totalCount"`
}

// Page is one decoded response envelope.
type Page struct {
	// Data is the raw data member, usually an array of records.
	Data json.RawMessage `json:"data"`

	// Pagination is nil for endpoints that are not paginated.
	Pagination *Meta `json:"pagination,omitempty"`

	// SourceURL is the exact URL fetched, which is also its cache key.
	SourceURL string `json:"-"`
}

// ParsePage decodes a response envelope.
func ParsePage(payload []byte, sourceURL string) (*Page, error) {
	var page Page
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", sourceURL, err)
	}
	page.SourceURL = sourceURL
	return &page, nil
}

// Paginated reports whether the page carried a pagination block.
func (p *Page) Paginated() bool {
	return p.Pagination != nil
}

// Items splits Data into its array elements.
func (p *Page) Items() ([]json.RawMessage, error) {
	if len(p.Data) == 0 || string(p.Data) == "null" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(p.Data, &items); err != nil {
		return nil, fmt.Errorf("page %s: data is not a list: %w", p.SourceURL, err)
	}
	return items, nil
}

// Decode unmarshals Data as a list of T.
func Decode[T any](p *Page) ([]T, error) {
	if len(p.Data) == 0 || string(p.Data) == "null" {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(p.Data, &items); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", p.SourceURL, err)
	}
	return items, nil
}

// DecodeOne unmarshals Data as a single T, for endpoints returning one record.
func DecodeOne[T any](p *Page) (T, error) {
	var item T
	if err := json.Unmarshal(p.Data, &item); err != nil {
		return item, fmt.Errorf("decode record %s: %w", p.SourceURL, err)
	}
	return item, nil
}

// AppendQuery adds index and pageSize parameters to base, joining with "?" or
// "&" as needed. A base that already ends in "?" or "&" is extended directly.
func AppendQuery(base string, index, pageSize int) string {
	var b strings.Builder
	b.WriteString(base)

	if !strings.HasSuffix(base, "?") && !strings.HasSuffix(base, "&") {
		if strings.Contains(base, "?") {
			b.WriteByte('&')
		} else {
			b.WriteByte('?')
		}
	}

	b.WriteString("index=")
	b.WriteString(strconv.Itoa(index))
	b.WriteString("&pageSize=")
	b.WriteString(strconv.Itoa(pageSize))
	return b.String()
}
