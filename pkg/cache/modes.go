package cache

import (
	"fmt"
	"strings"
)

// CacheMode controls when stored entries are read.
type CacheMode string

const (
	// CacheNone never reads stored entries.
	CacheNone CacheMode = "none"

	// CacheDefault reads when the caller asks for it (Options.UseLocal).
	CacheDefault CacheMode = "default"

	// CacheAll always reads fresh-enough entries.
	CacheAll CacheMode = "all"

	// CacheOnly reads entries regardless of age and never touches the network.
	CacheOnly CacheMode = "only"
)

// StoreMode controls when responses are written.
type StoreMode string

const (
	// StoreNone never writes.
	StoreNone StoreMode = "none"

	// StoreDefault writes when the caller asks for it (Options.Write).
	StoreDefault StoreMode = "default"

	// StoreAll always writes, keeping older rows as history.
	StoreAll StoreMode = "all"

	// StoreLast always writes and replaces older rows for the same URL.
	StoreLast StoreMode = "last"
)

// ParseCacheMode parses a cache mode name. An empty string means CacheDefault.
func ParseCacheMode(s string) (CacheMode, error) {
	switch mode := CacheMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return CacheDefault, nil
	case CacheNone, CacheDefault, CacheAll, CacheOnly:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown cache mode %q (want none, default, all or only)", s)
	}
}

// ParseStoreMode parses a store mode name. An empty string means StoreDefault.
func ParseStoreMode(s string) (StoreMode, error) {
	switch mode := StoreMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return StoreDefault, nil
	case StoreNone, StoreDefault, StoreAll, StoreLast:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown store mode %q (want none, default, all or last)", s)
	}
}

// ReadAllowed reports whether a request may be served from the store.
func ReadAllowed(mode CacheMode, useLocal bool) bool {
	return (useLocal && mode == CacheDefault) || mode == CacheAll || mode == CacheOnly
}

// WriteAllowed reports whether a fetched response may be stored.
func WriteAllowed(mode StoreMode, write bool) bool {
	return (write && mode == StoreDefault) || mode == StoreAll || mode == StoreLast
}
