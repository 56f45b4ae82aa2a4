package store

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/catalog-mirror/internal/catalog"
	"gorm.io/datatypes"
)

// GameRow is a row of the games table.
type GameRow struct {
	ID   int64 `gorm:"primaryKey;autoIncrement:false"`
	Name string
	Slug string
	JSON datatypes.JSON `gorm:"column:json"`
}

// TableName pins the table name.
func (GameRow) TableName() string { return "games" }

// CategoryRow is a row of the categories table.
type CategoryRow struct {
	ID     int64 `gorm:"primaryKey;autoIncrement:false"`
	Name   string
	Slug   string
	GameID int64 `gorm:"index"`
	JSON   datatypes.JSON `gorm:"column:json"`
}

// TableName pins the table name.
func (CategoryRow) TableName() string { return "categories" }

// ModRow is a row of the mods table.
type ModRow struct {
	ID           int64 `gorm:"primaryKey;autoIncrement:false"`
	Name         string
	Slug         string
	GameID       int64 `gorm:"index"`
	CategoryIDs  datatypes.JSON
	DateModified string
	JSON         datatypes.JSON `gorm:"column:json"`
}

// TableName pins the table name.
func (ModRow) TableName() string { return "mods" }

// FileRow is a row of the files table.
type FileRow struct {
	ID          int64 `gorm:"primaryKey;autoIncrement:false"`
	DisplayName string
	FileName    string
	GameID      int64
	ModID       int64 `gorm:"index"`
	FileDate    string
	JSON        datatypes.JSON `gorm:"column:json"`
}

// TableName pins the table name.
func (FileRow) TableName() string { return "files" }

func rawOrMarshal(raw json.RawMessage, v any) (datatypes.JSON, error) {
	if len(raw) > 0 {
		return datatypes.JSON(raw), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return datatypes.JSON(data), nil
}

func gameRow(item catalog.Item[catalog.Game]) (any, error) {
	data, err := rawOrMarshal(item.Raw, item.Record)
	if err != nil {
		return nil, err
	}
	g := item.Record
	return &GameRow{ID: g.ID, Name: g.Name, Slug: g.Slug, JSON: data}, nil
}

func categoryRow(item catalog.Item[catalog.Category]) (any, error) {
	data, err := rawOrMarshal(item.Raw, item.Record)
	if err != nil {
		return nil, err
	}
	c := item.Record
	return &CategoryRow{ID: c.ID, Name: c.Name, Slug: c.Slug, GameID: c.GameID, JSON: data}, nil
}

func modRow(item catalog.Item[catalog.Mod]) (any, error) {
	data, err := rawOrMarshal(item.Raw, item.Record)
	if err != nil {
		return nil, err
	}
	m := item.Record
	ids, err := json.Marshal(m.CategoryIDs())
	if err != nil {
		return nil, fmt.Errorf("marshal category ids: %w", err)
	}
	return &ModRow{
		ID:           m.ID,
		Name:         m.Name,
		Slug:         m.Slug,
		GameID:       m.GameID,
		CategoryIDs:  datatypes.JSON(ids),
		DateModified: m.DateModified,
		JSON:         data,
	}, nil
}

func fileRow(item catalog.Item[catalog.File]) (any, error) {
	data, err := rawOrMarshal(item.Raw, item.Record)
	if err != nil {
		return nil, err
	}
	f := item.Record
	return &FileRow{
		ID:          f.ID,
		DisplayName: f.DisplayName,
		FileName:    f.FileName,
		GameID:      f.GameID,
		ModID:       f.ModID,
		FileDate:    f.FileDate,
		JSON:        data,
	}, nil
}
