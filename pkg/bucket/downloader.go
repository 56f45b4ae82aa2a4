package bucket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Downloader mirrors remote assets into a Bucket.
type Downloader struct {
	bucket     *Bucket
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// NewDownloader creates a downloader. A nil httpClient gets a client with a
// generous timeout for large files.
func NewDownloader(b *Bucket, httpClient *http.Client, userAgent string) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Downloader{
		bucket:     b,
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     log.With().Str("component", "bucket").Logger(),
	}
}

// Mirror downloads src when the bucket copy is missing or older than
// src.Timestamp. Failures are logged and reported as mirrored=false; they
// never abort the caller.
func (d *Downloader) Mirror(ctx context.Context, src Source) (hash string, mirrored bool) {
	if src.URL == "" {
		return "", false
	}

	refetch, err := d.bucket.ShouldRefetch(ctx, src.URL, src.Timestamp)
	if err != nil {
		d.report(&IngestError{URL: src.URL, Err: err})
		return "", false
	}
	if !refetch {
		skippedTotal.Inc()
		d.logger.Debug().Str("url", src.URL).Msg("Asset is up to date")
		return "", false
	}

	hash, err = d.fetch(ctx, src)
	if err != nil {
		d.report(&IngestError{URL: src.URL, Err: err})
		return "", false
	}
	return hash, true
}

func (d *Downloader) fetch(ctx context.Context, src Source) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	d.logger.Info().Str("url", src.URL).Msg("Downloading asset")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if src.Length <= 0 && resp.ContentLength > 0 {
		src.Length = resp.ContentLength
	}

	return d.bucket.Ingest(ctx, src, resp.Body)
}

func (d *Downloader) report(err *IngestError) {
	errorsTotal.Inc()
	d.logger.Error().Err(err.Err).Str("url", err.URL).Msg("Failed to mirror asset")
}
