package staleness

// Run tracks consecutive listing pages that brought nothing new.
//
// Listings sorted by modification time put changed entities first, so once
// Threshold pages in a row contain no entity newer than what is stored the scan
// can stop. An entity changed deep inside an otherwise unchanged page range can
// be missed; a full rescan picks it up.
type Run struct {
	// Threshold is the number of consecutive unchanged pages that ends the scan.
	// Zero disables early exit.
	Threshold int

	consecutive int
}

// NewRun creates a tracker with the given threshold.
func NewRun(threshold int) *Run {
	if threshold < 0 {
		threshold = 0
	}
	return &Run{Threshold: threshold}
}

// Observe records a page with the given number of newer entities and reports
// whether scanning should stop.
func (r *Run) Observe(newer int) bool {
	if newer > 0 {
		r.consecutive = 0
		return false
	}

	r.consecutive++
	return r.Threshold > 0 && r.consecutive >= r.Threshold
}

// Consecutive returns the current count of unchanged pages in a row.
func (r *Run) Consecutive() int {
	return r.consecutive
}

// Reset clears the counter, e.g. when moving to a different listing.
func (r *Run) Reset() {
	r.consecutive = 0
}
