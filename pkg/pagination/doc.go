// Package pagination walks index/pageSize paginated catalog endpoints one
// page at a time.
//
// The catalog API wraps list responses in an envelope:
//
//	{"data": [...], "pagination": {"index": 0, "pageSize": 50, "resultCount": 50, "totalCount": 120}}
//
// A Depaginator requests pages sequentially through the cache layer, so every
// page is individually cached under its exact URL. A page is handed to the
// caller before the decision to fetch the next one is made; the sequence ends
// when the held page has no pagination block, when the index has passed
// totalCount, or when the held page reaches the end of the result set.
//
// Example usage:
//
//	pages := pagination.New(manager, "/mods/search?gameId=432&categoryId=5", pagination.Config{
//		Write:    true,
//		UseLocal: true,
//		MaxAge:   time.Hour,
//	})
//	for page, ok := pages.Next(ctx); ok; page, ok = pages.Next(ctx) {
//		mods, err := pagination.Decode[catalog.Mod](page)
//		...
//	}
//	if err := pages.Err(); err != nil {
//		// the walk ended early
//	}
//
// Fetch errors end the sequence; they are logged and kept in Err, never
// returned from Next.
package pagination
