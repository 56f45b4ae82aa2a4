// Package catalog defines the records mirrored from the catalog API and the
// endpoints they are fetched from.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-mirror/pkg/staleness"
)

// Game is a game the catalog hosts content for.
type Game struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	DateModified string     `json:"dateModified"`
	Assets       GameAssets `json:"assets"`
}

// GameAssets are the artwork URLs of a game.
type GameAssets struct {
	IconURL  string `json:"iconUrl"`
	TileURL  string `json:"tileUrl"`
	CoverURL string `json:"coverUrl"`
}

// Category groups mods within a game. Classes are top-level categories.
type Category struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Slug             string `json:"slug"`
	GameID           int64  `json:"gameId"`
	ClassID          int64  `json:"classId"`
	ParentCategoryID int64  `json:"parentCategoryId"`
	IsClass          bool   `json:"isClass"`
	IconURL          string `json:"iconUrl"`
	DateModified     string `json:"dateModified"`
}

// Links are the external pages of a mod.
type Links struct {
	WebsiteURL string `json:"websiteUrl"`
	WikiURL    string `json:"wikiUrl"`
	IssuesURL  string `json:"issuesUrl"`
	SourceURL  string `json:"sourceUrl"`
}

// Asset is an image attached to a mod.
type Asset struct {
	ID           int64  `json:"id"`
	ModID        int64  `json:"modId"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	URL          string `json:"url"`
}

// Mod is a project published in the catalog.
type Mod struct {
	ID                int64      `json:"id"`
	GameID            int64      `json:"gameId"`
	Name              string     `json:"name"`
	Slug              string     `json:"slug"`
	Summary           string     `json:"summary"`
	Links             Links      `json:"links"`
	DownloadCount     float64    `json:"downloadCount"`
	PrimaryCategoryID int64      `json:"primaryCategoryId"`
	ClassID           int64      `json:"classId"`
	Categories        []Category `json:"categories"`
	Logo              *Asset     `json:"logo"`
	Screenshots       []Asset    `json:"screenshots"`
	MainFileID        int64      `json:"mainFileId"`
	LatestFiles       []File     `json:"latestFiles"`
	DateCreated       string     `json:"dateCreated"`
	DateModified      string     `json:"dateModified"`
	DateReleased      string     `json:"dateReleased"`
}

// CategoryIDs returns the ids of the categories the mod is listed in.
func (m Mod) CategoryIDs() []int64 {
	ids := make([]int64, 0, len(m.Categories))
	for _, c := range m.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// Media returns the logo and screenshots of the mod.
func (m Mod) Media() []Asset {
	media := make([]Asset, 0, len(m.Screenshots)+1)
	if m.Logo != nil && m.Logo.URL != "" {
		media = append(media, *m.Logo)
	}
	for _, s := range m.Screenshots {
		if s.URL != "" {
			media = append(media, s)
		}
	}
	return media
}

// File is one uploaded release of a mod.
type File struct {
	ID           int64    `json:"id"`
	GameID       int64    `json:"gameId"`
	ModID        int64    `json:"modId"`
	DisplayName  string   `json:"displayName"`
	FileName     string   `json:"fileName"`
	ReleaseType  int      `json:"releaseType"`
	FileDate     string   `json:"fileDate"`
	FileLength   int64    `json:"fileLength"`
	DownloadURL  string   `json:"downloadUrl"`
	GameVersions []string `json:"gameVersions"`
}

// RecordID implements staleness.Versioned.
func (g Game) RecordID() int64 { return g.ID }

// ModifiedAt implements staleness.Versioned.
func (g Game) ModifiedAt() string { return g.DateModified }

// RecordID implements staleness.Versioned.
func (c Category) RecordID() int64 { return c.ID }

// ModifiedAt implements staleness.Versioned.
func (c Category) ModifiedAt() string { return c.DateModified }

// RecordID implements staleness.Versioned.
func (m Mod) RecordID() int64 { return m.ID }

// ModifiedAt implements staleness.Versioned.
func (m Mod) ModifiedAt() string { return m.DateModified }

// RecordID implements staleness.Versioned.
func (f File) RecordID() int64 { return f.ID }

// ModifiedAt implements staleness.Versioned. Files are immutable once
// uploaded, so their upload date is their modification date.
func (f File) ModifiedAt() string { return f.FileDate }

// Timestamp parses ModifiedAt, returning the zero time when it is unusable.
func Timestamp(v staleness.Versioned) time.Time {
	t, err := staleness.ParseTimestamp(v.ModifiedAt())
	if err != nil {
		return time.Time{}
	}
	return t
}

// Record is any mirrored entity.
type Record interface {
	Game | Category | Mod | File
	staleness.Versioned
}

// Item is a decoded record together with the exact JSON it came from.
type Item[T Record] struct {
	Record T
	Raw    json.RawMessage
}

// DecodeItems decodes a list of raw JSON objects.
func DecodeItems[T Record](raw []json.RawMessage) ([]Item[T], error) {
	items := make([]Item[T], 0, len(raw))
	for i, r := range raw {
		var rec T
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		items = append(items, Item[T]{Record: rec, Raw: r})
	}
	return items, nil
}
