// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package room

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/anchor_stage/internal/geo"
)

// ErrNotFound is returned when the requested room does not exist.
var ErrNotFound = errors.New("room not found")

// Store is the sqlite-backed room catalog.
type Store struct {
	db *sql.DB
}

// Info is a catalog row without the anchor and world-map payloads.
type Info struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AnchorCount int       `json:"anchor_count"`
	HasGeo      bool      `json:"has_geo"`
	SavedAt     time.Time `json:"saved_at"`
}

// OpenStore opens (creating if needed) the room database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open room db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT,
			anchors TEXT,
			world_map BLOB,
			lat REAL,
			lon REAL,
			has_geo INTEGER DEFAULT 0,
			saved_at TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create rooms table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the snapshot, assigning a fresh UUID when it has none yet.
func (s *Store) Save(snap *Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	anchors, err := encodeAnchors(snap.Anchors)
	if err != nil {
		return fmt.Errorf("encode anchors: %w", err)
	}

	var lat, lon float64
	hasGeo := 0
	if snap.Geo != nil {
		lat, lon = snap.Geo.Latitude, snap.Geo.Longitude
		hasGeo = 1
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO rooms (id, name, anchors, world_map, lat, lon, has_geo, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Name, string(anchors), snap.WorldMap, lat, lon, hasGeo, snap.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("save room %s: %w", snap.ID, err)
	}
	return nil
}

// Load reads one room by ID. Invalid anchors inside an otherwise readable
// room are dropped during decode; a fully corrupt anchor payload is an
// error and the caller falls back to an empty snapshot.
func (s *Store) Load(id string) (*Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT id, name, anchors, world_map, lat, lon, has_geo, saved_at FROM rooms WHERE id = ?`, id)
	return scanSnapshot(row)
}

// LoadLatest reads the most recently saved room.
func (s *Store) LoadLatest() (*Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT id, name, anchors, world_map, lat, lon, has_geo, saved_at FROM rooms ORDER BY saved_at DESC LIMIT 1`)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var (
		snap     Snapshot
		anchors  string
		lat, lon float64
		hasGeo   int
	)
	err := row.Scan(&snap.ID, &snap.Name, &anchors, &snap.WorldMap, &lat, &lon, &hasGeo, &snap.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read room: %w", err)
	}

	snap.Anchors, err = decodeAnchors([]byte(anchors))
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", snap.ID, err)
	}
	if hasGeo != 0 {
		snap.Geo = &geo.Fix{Latitude: lat, Longitude: lon}
	}
	return &snap, nil
}

// List returns catalog rows for every saved room, newest first.
func (s *Store) List() ([]Info, error) {
	rows, err := s.db.Query(
		`SELECT id, name, anchors, has_geo, saved_at FROM rooms ORDER BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var (
			info    Info
			anchors string
			hasGeo  int
		)
		if err := rows.Scan(&info.ID, &info.Name, &anchors, &hasGeo, &info.SavedAt); err != nil {
			return nil, fmt.Errorf("scan room row: %w", err)
		}
		info.HasGeo = hasGeo != 0
		if decoded, err := decodeAnchors([]byte(anchors)); err == nil {
			info.AnchorCount = len(decoded)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete removes one room.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Nearest returns the geo-tagged room closest to the given position and
// its distance in metres. ErrNotFound when no saved room carries a fix.
func (s *Store) Nearest(lat, lon float64) (Info, float64, error) {
	rows, err := s.db.Query(
		`SELECT id, name, lat, lon, saved_at FROM rooms WHERE has_geo = 1`)
	if err != nil {
		return Info{}, 0, fmt.Errorf("query geo rooms: %w", err)
	}
	defer rows.Close()

	best := Info{}
	bestDist := -1.0
	for rows.Next() {
		var (
			info       Info
			rLat, rLon float64
		)
		if err := rows.Scan(&info.ID, &info.Name, &rLat, &rLon, &info.SavedAt); err != nil {
			return Info{}, 0, fmt.Errorf("scan geo room: %w", err)
		}
		info.HasGeo = true
		d := geo.Distance(lat, lon, rLat, rLon)
		if bestDist < 0 || d < bestDist {
			best, bestDist = info, d
		}
	}
	if err := rows.Err(); err != nil {
		return Info{}, 0, err
	}
	if bestDist < 0 {
		return Info{}, 0, ErrNotFound
	}
	return best, bestDist, nil
}
