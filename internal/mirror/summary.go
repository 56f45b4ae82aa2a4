package mirror

import (
	"time"

	"github.com/rs/zerolog"
)

// Summary counts what one sync run did.
type Summary struct {
	Pages      int
	Games      int
	Categories int

	ModsNew     int
	ModsUpdated int
	ModsSkipped int
	ModsFailed  int

	Files  int
	Assets int

	// ListingFailures counts listings that ended on a failed request.
	ListingFailures int

	// EarlyStops counts mod listings abandoned after enough unchanged pages.
	EarlyStops int

	Started  time.Time
	Duration time.Duration
}

// Mods returns the number of mods written in the run.
func (s Summary) Mods() int {
	return s.ModsNew + s.ModsUpdated
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (s Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Int("pages", s.Pages).
		Int("games", s.Games).
		Int("categories", s.Categories).
		Int("mods_new", s.ModsNew).
		Int("mods_updated", s.ModsUpdated).
		Int("mods_skipped", s.ModsSkipped).
		Int("mods_failed", s.ModsFailed).
		Int("files", s.Files).
		Int("assets", s.Assets).
		Int("listing_failures", s.ListingFailures).
		Int("early_stops", s.EarlyStops).
		Dur("duration", s.Duration)
}
