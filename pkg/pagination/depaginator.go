package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-mirror/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pages_total",
		Help: "Total number of pages yielded by depaginators",
	})

	paginationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pagination_failures_total",
		Help: "Total number of paginated walks ended by a fetch failure",
	})
)

// DefaultPageSize is the page size requested when none is configured.
const DefaultPageSize = 50

// Getter returns JSON payloads, typically a *cache.Manager.
type Getter interface {
	GetJSON(ctx context.Context, url string, opts cache.Options) (json.RawMessage, error)
}

// Config holds the walk parameters and the cache hints passed to every page.
type Config struct {
	Index    int
	PageSize int
	Write    bool
	UseLocal bool
	MaxAge   time.Duration
}

// State is the position of a Depaginator in its walk.
type State int

const (
	// NotStarted means no page has been requested yet.
	NotStarted State = iota
	// Fetching means a page request is in flight.
	Fetching
	// HaveResult means a page was yielded and is held for the next decision.
	HaveResult
	// Exhausted means the walk ended normally.
	Exhausted
	// Failed means a fetch or decode error ended the walk.
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Fetching:
		return "fetching"
	case HaveResult:
		return "have_result"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Depaginator lazily walks a paginated endpoint. It is not safe for
// concurrent use.
type Depaginator struct {
	getter  Getter
	baseURL string
	config  Config

	index int
	state State
	held  *Page
	err   error

	logger zerolog.Logger
}

// New creates a Depaginator for baseURL. No request is made until Next.
func New(getter Getter, baseURL string, cfg Config) *Depaginator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Index < 0 {
		cfg.Index = 0
	}

	return &Depaginator{
		getter:  getter,
		baseURL: baseURL,
		config:  cfg,
		index:   cfg.Index,
		state:   NotStarted,
		logger:  log.With().Str("component", "pagination").Str("url", baseURL).Logger(),
	}
}

// Next returns the next page, or false when the walk is over. The held page
// is inspected only when the following page is requested, so a caller always
// sees a page before the walk decides to stop.
func (d *Depaginator) Next(ctx context.Context) (*Page, bool) {
	switch d.state {
	case Exhausted, Failed:
		return nil, false
	case HaveResult:
		if d.done() {
			d.state = Exhausted
			d.held = nil
			return nil, false
		}
		d.index += d.config.PageSize
	}

	d.state = Fetching
	url := d.URL()

	payload, err := d.getter.GetJSON(ctx, url, cache.Options{
		Write:    d.config.Write,
		UseLocal: d.config.UseLocal,
		MaxAge:   d.config.MaxAge,
	})
	if err != nil {
		return d.fail(url, err)
	}

	page, err := ParsePage(payload, url)
	if err != nil {
		return d.fail(url, err)
	}

	if !page.Paginated() {
		d.logger.Debug().Msg("Url is not paginated")
	}

	d.held = page
	d.state = HaveResult
	pagesTotal.Inc()
	return page, true
}

// done evaluates the stop conditions against the held page.
func (d *Depaginator) done() bool {
	meta := d.held.Pagination
	if meta == nil {
		return true
	}
	if d.index >= meta.TotalCount {
		return true
	}
	return d.index+meta.ResultCount >= meta.TotalCount
}

func (d *Depaginator) fail(url string, err error) (*Page, bool) {
	d.state = Failed
	d.held = nil
	d.err = err
	paginationFailuresTotal.Inc()
	d.logger.Warn().
		Err(err).
		Str("page_url", url).
		Int("index", d.index).
		Msg("Paginated walk ended by fetch failure")
	return nil, false
}

// URL returns the URL of the current index.
func (d *Depaginator) URL() string {
	return AppendQuery(d.baseURL, d.index, d.config.PageSize)
}

// Err returns the error that ended the walk, if any.
func (d *Depaginator) Err() error {
	return d.err
}

// State returns the current state.
func (d *Depaginator) State() State {
	return d.state
}

// Index returns the index of the last requested page.
func (d *Depaginator) Index() int {
	return d.index
}

// All drains the walk into a slice. Pages seen before a failure are kept and
// the failure is returned alongside them.
func (d *Depaginator) All(ctx context.Context) ([]*Page, error) {
	var pages []*Page
	for page, ok := d.Next(ctx); ok; page, ok = d.Next(ctx) {
		pages = append(pages, page)
	}
	return pages, d.err
}
