package repository

import (
	"context"
	"fmt"

	"servitec_backend/internal/requests/domain"
	"servitec_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const matchColumns = `
	id, request_id, technician_id, technician_name, technician_phone, specialty, city,
	score, distance_km, quote_status, price::text, eta_hours, note, rejection_reason, rating,
	created_at, updated_at`

func scanMatch(row scanner) (domain.Match, error) {
	var (
		m      domain.Match
		status string
		price  *string
	)
	if err := row.Scan(
		&m.ID, &m.RequestID, &m.TechnicianID, &m.TechnicianName, &m.TechnicianPhone, &m.Specialty, &m.City,
		&m.Score, &m.DistanceKm, &status, &price, &m.ETAHours, &m.Note, &m.RejectionReason, &m.Rating,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return domain.Match{}, err
	}
	m.QuoteStatus = domain.QuoteStatus(status)
	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return domain.Match{}, fmt.Errorf("parse match price %q: %w", *price, err)
		}
		m.Price = &d
	}
	return m, nil
}

const insertMatchQuery = `INSERT INTO request_matches (
		id, request_id, technician_id, technician_name, technician_phone, specialty, city,
		score, distance_km, quote_status, price, eta_hours, note, rejection_reason, rating,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (request_id, technician_id) DO NOTHING`

// matchArgs follows the column order of insertMatchQuery and matchColumns.
func matchArgs(m domain.Match) []any {
	return []any{
		m.ID, m.RequestID, m.TechnicianID, m.TechnicianName, m.TechnicianPhone, m.Specialty, m.City,
		m.Score, m.DistanceKm, string(m.QuoteStatus), priceArg(m.Price), m.ETAHours, m.Note, m.RejectionReason, m.Rating,
		m.CreatedAt, m.UpdatedAt,
	}
}

func priceArg(p *decimal.Decimal) *string {
	if p == nil {
		return nil
	}
	s := p.StringFixed(2)
	return &s
}

func (r *Repository) ListMatches(ctx context.Context, requestID uuid.UUID) ([]domain.Match, error) {
	rows, err := r.q.Query(ctx, `SELECT `+matchColumns+` FROM request_matches
		WHERE request_id = $1 ORDER BY score DESC, created_at ASC, id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) ListMatchesByRequests(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.Match, error) {
	out := make(map[uuid.UUID][]domain.Match, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+matchColumns+` FROM request_matches
		WHERE request_id = ANY($1) ORDER BY request_id, score DESC, created_at ASC, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list matches by requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out[m.RequestID] = append(out[m.RequestID], m)
	}
	return out, rows.Err()
}

// InsertMatches relies on UNIQUE (request_id, technician_id): a pair that is
// already stored is left untouched and not counted.
func (r *Repository) InsertMatches(ctx context.Context, matches []domain.Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, m := range matches {
		batch.Queue(insertMatchQuery, matchArgs(m)...)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range matches {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert match: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *Repository) UpdateMatch(ctx context.Context, m domain.Match) error {
	tag, err := r.q.Exec(ctx, `UPDATE request_matches SET
			quote_status = $3, price = $4, eta_hours = $5, note = $6, rejection_reason = $7, updated_at = $8
		WHERE id = $1 AND request_id = $2`,
		m.ID, m.RequestID, string(m.QuoteStatus), priceArg(m.Price), m.ETAHours, m.Note, m.RejectionReason, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(matchNotFoundMsg)
	}
	return nil
}
