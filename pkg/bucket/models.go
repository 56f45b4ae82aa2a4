package bucket

import "time"

// Blob is one stored piece of content.
type Blob struct {
	Hash       string `gorm:"primaryKey;size:32"`
	Length     int64
	Filename   string
	StoredPath string
	Data       []byte
	UpdatedAt  time.Time
}

// TableName pins the table name.
func (Blob) TableName() string {
	return "blobs"
}

// Provenance records which URL produced a blob.
type Provenance struct {
	URL         string `gorm:"primaryKey"`
	LogicalID   int64
	DisplayName string
	// FetchedAt is the remote timestamp the asset was ingested for, or the
	// ingest time when the remote did not provide one.
	FetchedAt time.Time
	Hash      string `gorm:"index;size:32"`
}

// TableName pins the table name.
func (Provenance) TableName() string {
	return "provenance"
}

// Source describes an asset to ingest.
type Source struct {
	URL         string
	LogicalID   int64
	DisplayName string
	Length      int64
	Timestamp   time.Time
}

// Stats summarizes the bucket contents.
type Stats struct {
	Blobs      int64
	Provenance int64
	Bytes      int64
}
