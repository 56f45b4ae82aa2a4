package cache

import "strings"

// Key normalizes a request URL into the form used as the cache key and as
// the path actually fetched.
//
// Surrounding whitespace is trimmed, relative paths get a leading slash and a
// dangling "?" or "&" is dropped. Anything else is kept verbatim, so
// "/mods/search?categoryId=1&index=0" and "/mods/search?index=0&categoryId=1"
// are different keys.
func Key(url string) string {
	key := strings.TrimSpace(url)
	if key == "" {
		return "/"
	}

	if !strings.Contains(key, "://") && !strings.HasPrefix(key, "/") {
		key = "/" + key
	}

	return strings.TrimRight(key, "?&")
}
