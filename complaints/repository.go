// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package complaints

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/civicmap/civicmap/spatial"
	"github.com/google/uuid"
	"github.com/uber/h3-go/v4"
)

// DefaultH3Resolution is the resolution cells are stored at (~0.1 km² hexagons).
const DefaultH3Resolution = 9

// LocationFilter narrows ListLocations.
type LocationFilter struct {
	District        string
	WithCoordinates bool
	Limit           int
	Offset          int
}

// CellCount is the number of complaints inside one H3 cell.
type CellCount struct {
	Cell   string        `json:"cell"`
	Count  int           `json:"count"`
	Center spatial.Point `json:"center"`
}

// LocationRepository handles persistence of complaint locations.
type LocationRepository interface {
	// CreateSchema creates the complaint_locations table
	CreateSchema() error

	// SaveLocations upserts locations in a single transaction
	SaveLocations(locations []*Location) error

	// ListLocations returns locations ordered by seq
	ListLocations(filter LocationFilter) ([]*Location, error)

	// GetAllLocationsSorted returns every location sorted by id
	GetAllLocationsSorted() ([]*Location, error)

	// CountLocations returns the total number of locations
	CountLocations() (int, error)

	// ListMissingCoordinates returns locations without latitude or longitude
	ListMissingCoordinates() ([]*Location, error)

	// UpdateCoordinates sets the point of a stored location
	UpdateCoordinates(id string, point spatial.Point) error

	// CountByCell aggregates located complaints per H3 cell at resolution
	CountByCell(resolution int) ([]CellCount, error)

	// H3Resolution is the resolution cells are stored at
	H3Resolution() int

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlLocationRepository struct {
	db         *sql.DB
	resolution int
}

// NewLocationRepository creates a new location repository storing H3 cells at
// the given resolution.
func NewLocationRepository(db *sql.DB, resolution int) LocationRepository {
	return &sqlLocationRepository{db: db, resolution: resolution}
}

// DB returns the underlying database connection for advanced queries.
func (r *sqlLocationRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlLocationRepository) H3Resolution() int {
	return r.resolution
}

func (r *sqlLocationRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS complaint_locations (
			id VARCHAR PRIMARY KEY,
			seq BIGINT NOT NULL,
			description VARCHAR NOT NULL,
			category VARCHAR NOT NULL,
			sub_category VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			urgency VARCHAR NOT NULL,
			submission_date VARCHAR NOT NULL,
			latitude DOUBLE,
			longitude DOUBLE,
			district VARCHAR NOT NULL,
			city VARCHAR NOT NULL,
			locality VARCHAR NOT NULL,
			pin VARCHAR NOT NULL,
			h3_cell UBIGINT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)

	return err
}

func (r *sqlLocationRepository) computeH3(l *Location) error {
	p, ok := l.Point()
	if !ok {
		l.H3Cell = 0

		return nil
	}

	if err := p.Validate(); err != nil {
		return fmt.Errorf("location %s: %w", l.ID, err)
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), r.resolution)
	if err != nil {
		return fmt.Errorf("error converting to h3 cell at res %d: %w", r.resolution, err)
	}

	l.H3Cell = int64(cell)

	return nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}

	return *v
}

func nullableCell(cell int64) any {
	if cell == 0 {
		return nil
	}

	return cell
}

func (r *sqlLocationRepository) SaveLocations(locations []*Location) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO complaint_locations(
			id, seq, description, category, sub_category, status, urgency,
			submission_date, latitude, longitude, district, city, locality, pin,
			h3_cell, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return errors.Join(err, tx.Rollback())
	}
	defer stmt.Close()

	for _, l := range locations {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}

		if err := r.computeH3(l); err != nil {
			return errors.Join(err, tx.Rollback())
		}

		_, err := stmt.Exec(
			l.ID,
			l.Seq,
			l.Description,
			l.Category,
			l.SubCategory,
			l.Status,
			l.Urgency,
			l.SubmissionDate,
			nullableFloat(l.Latitude),
			nullableFloat(l.Longitude),
			l.District,
			l.City,
			l.Locality,
			l.Pin,
			nullableCell(l.H3Cell),
		)
		if err != nil {
			return errors.Join(fmt.Errorf("saving location %s: %w", l.ID, err), tx.Rollback())
		}
	}

	return tx.Commit()
}

var baseSelect = `
	SELECT id, seq, description, category, sub_category, status, urgency,
	       submission_date, latitude, longitude, district, city, locality, pin,
	       h3_cell
	FROM complaint_locations
`

func (r *sqlLocationRepository) list(query string, args []any) ([]*Location, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := []*Location{}

	for rows.Next() {
		l := &Location{}

		var lat, lng sql.NullFloat64

		var cell sql.NullInt64

		err := rows.Scan(
			&l.ID, &l.Seq, &l.Description, &l.Category, &l.SubCategory,
			&l.Status, &l.Urgency, &l.SubmissionDate,
			&lat, &lng,
			&l.District, &l.City, &l.Locality, &l.Pin,
			&cell,
		)
		if err != nil {
			return nil, err
		}

		if lat.Valid && lng.Valid {
			l.SetPoint(spatial.Point{Lat: lat.Float64, Lng: lng.Float64})
		}

		if cell.Valid {
			l.H3Cell = cell.Int64
		}

		locations = append(locations, l)
	}

	return locations, rows.Err()
}

func (r *sqlLocationRepository) ListLocations(filter LocationFilter) ([]*Location, error) {
	query := baseSelect + " WHERE 1 = 1"

	args := []any{}

	if filter.District != "" {
		query += " AND lower(district) = lower(?)"

		args = append(args, filter.District)
	}

	if filter.WithCoordinates {
		query += " AND latitude IS NOT NULL AND longitude IS NOT NULL"
	}

	query += " ORDER BY seq, id"

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"

		args = append(args, filter.Limit, filter.Offset)
	}

	return r.list(query, args)
}

func (r *sqlLocationRepository) GetAllLocationsSorted() ([]*Location, error) {
	return r.list(baseSelect+" ORDER BY id", []any{})
}

func (r *sqlLocationRepository) CountLocations() (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM complaint_locations",
	).Scan(&count)

	return count, err
}

func (r *sqlLocationRepository) ListMissingCoordinates() ([]*Location, error) {
	return r.list(baseSelect+" WHERE latitude IS NULL OR longitude IS NULL ORDER BY seq, id", []any{})
}

func (r *sqlLocationRepository) UpdateCoordinates(id string, point spatial.Point) error {
	if err := point.Validate(); err != nil {
		return fmt.Errorf("location %s: %w", id, err)
	}

	l := &Location{ID: id}
	l.SetPoint(point)

	if err := r.computeH3(l); err != nil {
		return err
	}

	res, err := r.db.Exec(`
		UPDATE complaint_locations
		SET latitude = ?, longitude = ?, h3_cell = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, point.Lat, point.Lng, nullableCell(l.H3Cell), id)
	if err != nil {
		return fmt.Errorf("updating coordinates of %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating coordinates of %s: %w", id, err)
	}

	if n == 0 {
		return fmt.Errorf("location %s: %w", id, sql.ErrNoRows)
	}

	return nil
}

func (r *sqlLocationRepository) CountByCell(resolution int) ([]CellCount, error) {
	if resolution < 0 || resolution > r.resolution {
		return nil, fmt.Errorf("resolution %d outside 0..%d", resolution, r.resolution)
	}

	rows, err := r.db.Query(`
		SELECT h3_cell, COUNT(*)
		FROM complaint_locations
		WHERE h3_cell IS NOT NULL
		GROUP BY h3_cell
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[h3.Cell]int)

	for rows.Next() {
		var raw int64

		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, err
		}

		cell := h3.Cell(raw)
		if resolution < cell.Resolution() {
			cell, err = cell.Parent(resolution)
			if err != nil {
				return nil, fmt.Errorf("parent of %s at res %d: %w", h3.Cell(raw), resolution, err)
			}
		}

		counts[cell] += n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]CellCount, 0, len(counts))

	for cell, n := range counts {
		center, err := cell.LatLng()
		if err != nil {
			return nil, fmt.Errorf("center of %s: %w", cell, err)
		}

		result = append(result, CellCount{
			Cell:   cell.String(),
			Count:  n,
			Center: spatial.Point{Lat: center.Lat, Lng: center.Lng},
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}

		return result[i].Cell < result[j].Cell
	})

	log.Printf("Aggregated %d cells at resolution %d", len(result), resolution)

	return result, nil
}
