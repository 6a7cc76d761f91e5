package repository

import (
	"context"
	"errors"
	"fmt"

	"servitec_backend/internal/requests/domain"
	"servitec_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	requestNotFoundMsg = "solicitud no encontrada"
	matchNotFoundMsg   = "el técnico no forma parte de esta solicitud"
	staleRequestMsg    = "la solicitud cambió mientras tanto, vuelve a cargarla"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository implements Store on a pgx pool, or on one transaction inside WithinRequest.
type Repository struct {
	pool *pgxpool.Pool
	q    querier
	tx   pgx.Tx
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

const requestColumns = `
	id, client_id, title, category, description, address, city, latitude, longitude,
	urgency, preferred_window, mode, status, radius_km,
	target_technician_id, target_technician_name, target_technician_phone,
	assigned_technician_id, assigned_technician_name, assigned_technician_phone,
	direct_expires_at, selected_match_id, created_at, updated_at`

const insertRequestQuery = `INSERT INTO service_requests (` + requestColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

// updateRequestQuery only touches the columns a transition may change. The
// status guard makes it a compare-and-swap.
const updateRequestQuery = `UPDATE service_requests SET
		latitude = $2, longitude = $3, mode = $4, status = $5,
		target_technician_id = $6, target_technician_name = $7, target_technician_phone = $8,
		assigned_technician_id = $9, assigned_technician_name = $10, assigned_technician_phone = $11,
		direct_expires_at = $12, selected_match_id = $13, updated_at = $14
	WHERE id = $1 AND status = $15`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (domain.Request, error) {
	var (
		r                          domain.Request
		urgency, mode, status      string
		targetID, assignedID       *uuid.UUID
		targetName, assignedName   *string
		targetPhone, assignedPhone *string
	)
	err := row.Scan(
		&r.ID, &r.ClientID, &r.Title, &r.Category, &r.Description, &r.Address, &r.City, &r.Latitude, &r.Longitude,
		&urgency, &r.PreferredWindow, &mode, &status, &r.RadiusKm,
		&targetID, &targetName, &targetPhone,
		&assignedID, &assignedName, &assignedPhone,
		&r.DirectExpiresAt, &r.SelectedMatchID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return domain.Request{}, err
	}
	r.Urgency = domain.Urgency(urgency)
	r.Mode = domain.Mode(mode)
	r.Status = domain.Status(status)
	if targetID != nil {
		r.Target = &domain.TechnicianRef{ID: *targetID, Name: deref(targetName), Phone: deref(targetPhone)}
	}
	if assignedID != nil {
		r.Assigned = &domain.TechnicianRef{ID: *assignedID, Name: deref(assignedName), Phone: deref(assignedPhone)}
	}
	return r, nil
}

func collectRequests(rows pgx.Rows) ([]domain.Request, error) {
	defer rows.Close()
	out := make([]domain.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (r *Repository) CreateRequest(ctx context.Context, req domain.Request, matches []domain.Match, timeline []domain.TimelineEvent) error {
	if err := req.CheckInvariants(); err != nil {
		return apperr.Wrap(apperr.KindInternal, "estado de solicitud inconsistente", err)
	}
	return r.inTx(ctx, func(ctx context.Context, tx *Repository) error {
		if _, err := tx.q.Exec(ctx, insertRequestQuery, requestArgs(req)...); err != nil {
			return fmt.Errorf("insert service request: %w", err)
		}
		if _, err := tx.InsertMatches(ctx, matches); err != nil {
			return err
		}
		return tx.AppendTimeline(ctx, timeline...)
	})
}

// technicianColumns is one technician reference as nullable id, name and phone.
type technicianColumns struct {
	id          *uuid.UUID
	name, phone *string
}

func columnsOf(ref *domain.TechnicianRef) technicianColumns {
	if ref == nil {
		return technicianColumns{}
	}
	return technicianColumns{id: &ref.ID, name: &ref.Name, phone: nilIfEmpty(ref.Phone)}
}

// requestArgs follows requestColumns.
func requestArgs(req domain.Request) []any {
	target, assigned := columnsOf(req.Target), columnsOf(req.Assigned)
	return []any{
		req.ID, req.ClientID, req.Title, req.Category, req.Description, req.Address, req.City, req.Latitude, req.Longitude,
		string(req.Urgency), req.PreferredWindow, string(req.Mode), string(req.Status), req.RadiusKm,
		target.id, target.name, target.phone,
		assigned.id, assigned.name, assigned.phone,
		req.DirectExpiresAt, req.SelectedMatchID, req.CreatedAt, req.UpdatedAt,
	}
}

// updateRequestArgs follows the placeholders of updateRequestQuery.
func updateRequestArgs(req domain.Request, expected domain.Status) []any {
	target, assigned := columnsOf(req.Target), columnsOf(req.Assigned)
	return []any{
		req.ID, req.Latitude, req.Longitude, string(req.Mode), string(req.Status),
		target.id, target.name, target.phone,
		assigned.id, assigned.name, assigned.phone,
		req.DirectExpiresAt, req.SelectedMatchID, req.UpdatedAt, string(expected),
	}
}

func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (domain.Request, error) {
	row := r.q.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Request{}, apperr.NotFound(requestNotFoundMsg)
		}
		return domain.Request{}, fmt.Errorf("get service request: %w", err)
	}
	return req, nil
}

func (r *Repository) ListRequestsByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Request, error) {
	rows, err := r.q.Query(ctx, `SELECT `+requestColumns+` FROM service_requests
		WHERE client_id = $1 ORDER BY created_at DESC, id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list client requests: %w", err)
	}
	return collectRequests(rows)
}

func (r *Repository) ListOpenRequests(ctx context.Context) ([]domain.Request, error) {
	statuses := make([]string, 0, len(domain.OpenStatuses))
	for _, s := range domain.OpenStatuses {
		statuses = append(statuses, string(s))
	}
	rows, err := r.q.Query(ctx, `SELECT `+requestColumns+` FROM service_requests
		WHERE status = ANY($1) ORDER BY created_at DESC`, statuses)
	if err != nil {
		return nil, fmt.Errorf("list open requests: %w", err)
	}
	return collectRequests(rows)
}

func (r *Repository) ListMissingCoordinates(ctx context.Context, limit int) ([]domain.Request, error) {
	rows, err := r.q.Query(ctx, `SELECT `+requestColumns+` FROM service_requests
		WHERE latitude IS NULL AND status NOT IN ('completed', 'cancelled')
		  AND COALESCE(TRIM(address), '') <> ''
		ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list requests missing coordinates: %w", err)
	}
	return collectRequests(rows)
}

func (r *Repository) UpdateRequest(ctx context.Context, req domain.Request, expected domain.Status) error {
	if err := req.CheckInvariants(); err != nil {
		return apperr.Wrap(apperr.KindInternal, "estado de solicitud inconsistente", err)
	}
	tag, err := r.q.Exec(ctx, updateRequestQuery, updateRequestArgs(req, expected)...)
	if err != nil {
		return fmt.Errorf("update service request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(staleRequestMsg)
	}
	return nil
}

func (r *Repository) SetRequestCoordinates(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	_, err := r.q.Exec(ctx, `UPDATE service_requests SET latitude = $2, longitude = $3 WHERE id = $1 AND latitude IS NULL`, id, lat, lng)
	if err != nil {
		return fmt.Errorf("set request coordinates: %w", err)
	}
	return nil
}

// WithinRequest locks the request row for the duration of fn. Inside an
// existing transaction the lock is taken on that transaction.
func (r *Repository) WithinRequest(ctx context.Context, requestID uuid.UUID, fn func(ctx context.Context, tx Store) error) error {
	return r.inTx(ctx, func(ctx context.Context, tx *Repository) error {
		var id uuid.UUID
		err := tx.q.QueryRow(ctx, `SELECT id FROM service_requests WHERE id = $1 FOR UPDATE`, requestID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound(requestNotFoundMsg)
			}
			return fmt.Errorf("lock service request: %w", err)
		}
		return fn(ctx, tx)
	})
}

func (r *Repository) inTx(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &Repository{pool: r.pool, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Store = (*Repository)(nil)
