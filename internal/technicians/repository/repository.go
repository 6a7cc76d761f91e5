// Package repository reads technician profiles for matching.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servitec_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const technicianNotFoundMsg = "técnico no encontrado"

// Profile is one technicians row. WorkingHours is the structured JSON
// configuration and WorkingHoursText the legacy free-text one; either may be empty.
type Profile struct {
	ID               uuid.UUID
	Name             string
	Phone            string
	Specialty        string
	City             string
	CoverageArea     string
	BaseAddress      string
	Latitude         *float64
	Longitude        *float64
	RadiusKm         float64
	Rating           float64
	WorkingHours     []byte
	WorkingHoursText string
	Timezone         string
	LastSeenAt       *time.Time
	Active           bool
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `
	id, name, phone, specialty, city, coverage_area, base_address, latitude, longitude,
	radius_km, rating, working_hours, working_hours_text, timezone, last_seen_at, active`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID, &p.Name, &p.Phone, &p.Specialty, &p.City, &p.CoverageArea, &p.BaseAddress, &p.Latitude, &p.Longitude,
		&p.RadiusKm, &p.Rating, &p.WorkingHours, &p.WorkingHoursText, &p.Timezone, &p.LastSeenAt, &p.Active,
	)
	return p, err
}

func collect(rows pgx.Rows) ([]Profile, error) {
	defer rows.Close()
	out := make([]Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListActive returns every active technician, by name.
func (r *Repository) ListActive(ctx context.Context) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM technicians WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list active technicians: %w", err)
	}
	return collect(rows)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM technicians WHERE id = $1 AND active`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, apperr.NotFound(technicianNotFoundMsg)
		}
		return Profile{}, fmt.Errorf("get technician: %w", err)
	}
	return p, nil
}

// SetCoordinates stores a geocoded base location. Existing coordinates are kept.
func (r *Repository) SetCoordinates(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE technicians SET latitude = $2, longitude = $3, updated_at = now()
		WHERE id = $1 AND latitude IS NULL`, id, lat, lng)
	if err != nil {
		return fmt.Errorf("set technician coordinates: %w", err)
	}
	return nil
}

// ListMissingCoordinates returns active technicians with a base address but no coordinates, oldest first.
func (r *Repository) ListMissingCoordinates(ctx context.Context, limit int) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM technicians
		WHERE active AND latitude IS NULL AND COALESCE(TRIM(base_address), '') <> ''
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list technicians missing coordinates: %w", err)
	}
	return collect(rows)
}
