package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-mirror/pkg/client"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newTestManager(t *testing.T, fetcher Fetcher, store EntryStore, cacheMode CacheMode, storeMode StoreMode) *Manager {
	t.Helper()
	m, err := NewManager(fetcher, store, Config{CacheMode: cacheMode, StoreMode: storeMode})
	require.NoError(t, err)
	return m
}

func TestNewManager(t *testing.T) {
	store := NewSQLStore(StaticConn(openTestDB(t)))
	fetcher := &fakeFetcher{}

	tests := []struct {
		name    string
		fetcher Fetcher
		store   EntryStore
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", fetcher: fetcher, store: store},
		{name: "no store with modes off", fetcher: fetcher, cfg: Config{CacheMode: CacheNone, StoreMode: StoreNone}},
		{name: "no store with default modes", fetcher: fetcher, wantErr: true},
		{name: "offline without fetcher", store: store, cfg: Config{CacheMode: CacheOnly}},
		{name: "online without fetcher", store: store, cfg: Config{CacheMode: CacheAll}, wantErr: true},
		{name: "unknown cache mode", fetcher: fetcher, store: store, cfg: Config{CacheMode: "maybe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.fetcher, tt.store, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewManager() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetJSON_RoundTripUnderAll(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLStore(StaticConn(db))
	ctx := context.Background()
	opts := Options{MaxAge: time.Hour}

	online := &fakeFetcher{body: `{ "data" : [ {"id": 432, "name": "Minecraft"} ] }`}
	first, err := newTestManager(t, online, store, CacheNone, StoreAll).GetJSON(ctx, "/games", opts)
	require.NoError(t, err)
	require.Equal(t, 1, online.calls())

	replay := &fakeFetcher{}
	second, err := newTestManager(t, replay, store, CacheAll, StoreNone).GetJSON(ctx, "/games", opts)
	require.NoError(t, err)
	require.Equal(t, 0, replay.calls(), "served from store")
	require.Equal(t, string(first), string(second))
	require.Equal(t, `{"data":[{"id":432,"name":"Minecraft"}]}`, string(second))
}

func TestGetJSON_OfflineMiss(t *testing.T) {
	store := NewSQLStore(StaticConn(openTestDB(t)))
	fetcher := &fakeFetcher{body: `{}`}
	m := newTestManager(t, fetcher, store, CacheOnly, StoreDefault)

	payload, err := m.GetJSON(context.Background(), "/games", Options{Write: true, MaxAge: time.Hour})
	require.ErrorIs(t, err, ErrOffline)
	require.Nil(t, payload)
	require.Equal(t, 0, fetcher.calls())
}

func TestGetJSON_OfflineIgnoresAge(t *testing.T) {
	store := NewSQLStore(StaticConn(openTestDB(t)))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Entry{
		URL:       "/games",
		Payload:   []byte(`{"data":[]}`),
		FetchedAt: time.Now().Add(-30 * 24 * time.Hour),
	}, false))

	fetcher := &fakeFetcher{}
	payload, err := newTestManager(t, fetcher, store, CacheOnly, StoreNone).GetJSON(ctx, "/games", Options{MaxAge: time.Minute})
	require.NoError(t, err)
	require.Equal(t, `{"data":[]}`, string(payload))
	require.Equal(t, 0, fetcher.calls())
}

func TestGetJSON_DefaultModeHonoursOptions(t *testing.T) {
	store := NewSQLStore(StaticConn(openTestDB(t)))
	ctx := context.Background()
	fetcher := &fakeFetcher{body: `{"data":1}`}
	m := newTestManager(t, fetcher, store, CacheDefault, StoreDefault)

	// Write=false leaves the store untouched.
	_, err := m.GetJSON(ctx, "/games", Options{UseLocal: true, MaxAge: time.Hour})
	require.NoError(t, err)
	exists, err := store.Exists(ctx, "/games")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = m.GetJSON(ctx, "/games", Options{Write: true, UseLocal: true, MaxAge: time.Hour})
	require.NoError(t, err)
	require.Equal(t, 2, fetcher.calls())

	// UseLocal now finds the stored entry.
	_, err = m.GetJSON(ctx, "/games", Options{UseLocal: true, MaxAge: time.Hour})
	require.NoError(t, err)
	require.Equal(t, 2, fetcher.calls())

	// UseLocal=false always goes to the network.
	_, err = m.GetJSON(ctx, "/games", Options{MaxAge: time.Hour})
	require.NoError(t, err)
	require.Equal(t, 3, fetcher.calls())
}

func TestGetJSON_StaleEntryRefetched(t *testing.T) {
	store := NewSQLStore(StaticConn(openTestDB(t)))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Entry{
		URL:       "/games",
		Payload:   []byte(`{"v":"old"}`),
		FetchedAt: time.Now().Add(-2 * time.Hour),
	}, false))

	fetcher := &fakeFetcher{body: `{"v":"new"}`}
	payload, err := newTestManager(t, fetcher, store, CacheAll, StoreAll).GetJSON(ctx, "/games", Options{MaxAge: time.Hour})
	require.NoError(t, err)
	require.Equal(t, `{"v":"new"}`, string(payload))
	require.Equal(t, 1, fetcher.calls())

	// The refreshed row is now the newest one.
	entry, err := store.Get(ctx, "/games")
	require.NoError(t, err)
	require.Equal(t, `{"v":"new"}`, string(entry.Payload))
}

func TestGetJSON_CorruptEntryFallsThrough(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLStore(StaticConn(db))

	require.NoError(t, db.Create(&APIRequest{
		URL:       "/games",
		FetchedAt: time.Now().UTC(),
		Payload:   datatypes.JSON(`{"data": [`),
	}).Error)

	fetcher := &fakeFetcher{body: `{"data":[]}`}
	payload, err := newTestManager(t, fetcher, store, CacheAll, StoreNone).GetJSON(context.Background(), "/games", Options{MaxAge: time.Hour})
	require.NoError(t, err)
	require.Equal(t, `{"data":[]}`, string(payload))
	require.Equal(t, 1, fetcher.calls())
}

func TestGetJSON_StoreLastReplaces(t *testing.T) {
	tests := []struct {
		mode     StoreMode
		wantRows int64
	}{
		{mode: StoreAll, wantRows: 3},
		{mode: StoreLast, wantRows: 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			store := NewSQLStore(StaticConn(openTestDB(t)))
			ctx := context.Background()
			m := newTestManager(t, &fakeFetcher{body: `{"data":[]}`}, store, CacheNone, tt.mode)

			for i := 0; i < 3; i++ {
				_, err := m.GetJSON(ctx, "/games", Options{})
				require.NoError(t, err)
			}

			count, err := store.Count(ctx)
			require.NoError(t, err)
			require.Equal(t, tt.wantRows, count)
		})
	}
}

func TestGetJSON_UpstreamErrors(t *testing.T) {
	transport := &client.RequestError{URL: "/games", Attempts: 5, Err: client.ErrRetryExhausted}

	tests := []struct {
		name       string
		fetcher    *fakeFetcher
		wantStatus int
		wantIs     error
	}{
		{
			name:       "server error",
			fetcher:    &fakeFetcher{status: 500, body: `{"error":"boom"}`},
			wantStatus: 500,
		},
		{
			name:       "not found",
			fetcher:    &fakeFetcher{status: 404, body: `{}`},
			wantStatus: 404,
		},
		{
			name:       "invalid body",
			fetcher:    &fakeFetcher{body: `<html>`},
			wantStatus: 200,
			wantIs:     ErrInvalidPayload,
		},
		{
			name:    "transport exhausted",
			fetcher: &fakeFetcher{err: transport},
			wantIs:  client.ErrRetryExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewSQLStore(StaticConn(openTestDB(t)))
			ctx := context.Background()
			m := newTestManager(t, tt.fetcher, store, CacheNone, StoreAll)

			_, err := m.GetJSON(ctx, "/games", Options{})

			var upstream *UpstreamError
			require.True(t, errors.As(err, &upstream), "got %v", err)
			require.Equal(t, tt.wantStatus, upstream.StatusCode)
			if tt.wantIs != nil {
				require.ErrorIs(t, err, tt.wantIs)
			}

			exists, err := store.Exists(ctx, "/games")
			require.NoError(t, err)
			require.False(t, exists, "failed responses are never stored")
		})
	}
}

func TestGetJSON_NormalizesKey(t *testing.T) {
	store := NewSQLStore(StaticConn(openTestDB(t)))
	fetcher := &fakeFetcher{body: `{"data":[]}`}
	m := newTestManager(t, fetcher, store, CacheNone, StoreAll)

	_, err := m.GetJSON(context.Background(), " mods/1/files? ", Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"/mods/1/files"}, fetcher.paths)

	exists, err := store.Exists(context.Background(), "/mods/1/files")
	require.NoError(t, err)
	require.True(t, exists)
}
