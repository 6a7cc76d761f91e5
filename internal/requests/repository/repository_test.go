package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"servitec_backend/internal/requests/domain"
	"servitec_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

// fakeRow scans a fixed list of values into the destinations positionally, the
// way pgx assigns one column per destination.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(r.values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if r.values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(r.values[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan column %d: %s into %s", i, v.Type(), target.Type())
		}
		target.Set(v)
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	tag   string
	row   fakeRow
	tags  []string
	execs []execCall
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execs = append(q.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag(q.tag), nil
}

func (q *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (q *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row { return q.row }

func (q *fakeQuerier) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	return &batchResults{tags: q.tags[:b.Len()]}
}

type batchResults struct {
	tags []string
	next int
}

func (b *batchResults) Exec() (pgconn.CommandTag, error) {
	tag := pgconn.NewCommandTag(b.tags[b.next])
	b.next++
	return tag, nil
}

func (b *batchResults) Query() (pgx.Rows, error) { return nil, errors.New("not used") }
func (b *batchResults) QueryRow() pgx.Row        { return fakeRow{err: errors.New("not used")} }
func (b *batchResults) Close() error             { return nil }

func directRequest() domain.Request {
	lat, lng := -34.6037, -58.3816
	expires := t0.Add(20 * time.Minute)
	return domain.Request{
		ID:              uuid.New(),
		ClientID:        uuid.New(),
		Title:           "Cambio de térmica",
		Category:        "electricidad",
		Address:         "Av. Corrientes 1234",
		City:            "Buenos Aires",
		Latitude:        &lat,
		Longitude:       &lng,
		Urgency:         domain.UrgencyHigh,
		Mode:            domain.ModeDirect,
		Status:          domain.StatusDirectSent,
		RadiusKm:        15,
		Target:          &domain.TechnicianRef{ID: uuid.New(), Name: "Marta Gómez", Phone: "+5491155550101"},
		DirectExpiresAt: &expires,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
}

func placeholders(sql string) int {
	seen := map[string]bool{}
	for _, p := range regexp.MustCompile(`\$\d+`).FindAllString(sql, -1) {
		seen[p] = true
	}
	return len(seen)
}

func columnCount(list string) int {
	return len(strings.Split(list, ","))
}

// assignments maps "column = $N" pairs of one SQL fragment to their argument index.
func assignments(t *testing.T, fragment string) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, m := range regexp.MustCompile(`(\w+) = \$(\d+)`).FindAllStringSubmatch(fragment, -1) {
		n, err := strconv.Atoi(m[2])
		require.NoError(t, err)
		out[m[1]] = n - 1
	}
	return out
}

func TestRequestRowKeepsDirectTargetPhone(t *testing.T) {
	req := directRequest()

	loaded, err := scanRequest(fakeRow{values: requestArgs(req)})
	require.NoError(t, err)
	require.NotNil(t, loaded.Target)
	assert.Equal(t, *req.Target, *loaded.Target)
	assert.Equal(t, req.RadiusKm, loaded.RadiusKm)
	assert.Equal(t, domain.StatusDirectSent, loaded.Status)

	require.NoError(t, loaded.AcceptDirect(t0.Add(time.Minute)))
	reloaded, err := scanRequest(fakeRow{values: requestArgs(loaded)})
	require.NoError(t, err)
	require.NotNil(t, reloaded.Assigned)
	assert.Equal(t, "+5491155550101", reloaded.Assigned.Phone)
	assert.Nil(t, reloaded.DirectExpiresAt)
}

func TestRequestRowWithoutTechnicians(t *testing.T) {
	req := directRequest()
	req.Mode, req.Status = domain.ModeMarketplace, domain.StatusPublished
	req.Target, req.DirectExpiresAt = nil, nil
	req.Latitude, req.Longitude = nil, nil

	loaded, err := scanRequest(fakeRow{values: requestArgs(req)})
	require.NoError(t, err)

	assert.Nil(t, loaded.Target)
	assert.Nil(t, loaded.Assigned)
	assert.False(t, loaded.HasCoordinates())
}

func TestRequestQueriesFollowColumnList(t *testing.T) {
	columns := columnCount(requestColumns)

	assert.Equal(t, columns, len(requestArgs(directRequest())))
	assert.Equal(t, columns, placeholders(insertRequestQuery))
	assert.Equal(t, placeholders(updateRequestQuery), len(updateRequestArgs(directRequest(), domain.StatusDirectSent)))
	assert.Equal(t, columnCount(matchColumns), len(matchArgs(domain.Match{})))
	assert.Equal(t, columnCount(matchColumns), placeholders(insertMatchQuery))
}

func TestUpdateRequestArgsLineUpWithPlaceholders(t *testing.T) {
	req := directRequest()
	require.NoError(t, req.AcceptDirect(t0.Add(time.Minute)))
	args := updateRequestArgs(req, domain.StatusDirectSent)

	set, where, ok := strings.Cut(updateRequestQuery, "WHERE")
	require.True(t, ok)
	cols := assignments(t, set)
	guard := assignments(t, where)

	assert.Equal(t, req.ID, args[guard["id"]])
	assert.Equal(t, string(domain.StatusDirectSent), args[guard["status"]])
	assert.Equal(t, string(domain.StatusSelected), args[cols["status"]])
	assert.Equal(t, string(domain.ModeDirect), args[cols["mode"]])
	assert.Equal(t, req.UpdatedAt, args[cols["updated_at"]])
	assert.Equal(t, &req.Assigned.ID, args[cols["assigned_technician_id"]])
	assert.Equal(t, &req.Assigned.Phone, args[cols["assigned_technician_phone"]])
	assert.Equal(t, &req.Target.Phone, args[cols["target_technician_phone"]])
	assert.Nil(t, args[cols["direct_expires_at"]])
}

func TestUpdateRequestIsCompareAndSwap(t *testing.T) {
	req := directRequest()
	require.NoError(t, req.AcceptDirect(t0))

	q := &fakeQuerier{tag: "UPDATE 0"}
	err := (&Repository{q: q}).UpdateRequest(context.Background(), req, domain.StatusDirectSent)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "%v", err)

	q.tag = "UPDATE 1"
	require.NoError(t, (&Repository{q: q}).UpdateRequest(context.Background(), req, domain.StatusDirectSent))
	require.Len(t, q.execs, 2)
	assert.Contains(t, q.execs[1].sql, "AND status = $15")
}

func TestUpdateRequestRefusesInconsistentRow(t *testing.T) {
	req := directRequest()
	req.DirectExpiresAt = nil
	q := &fakeQuerier{tag: "UPDATE 1"}

	err := (&Repository{q: q}).UpdateRequest(context.Background(), req, domain.StatusDirectSent)

	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Empty(t, q.execs)
}

func TestInsertMatchesCountsOnlyNewPairs(t *testing.T) {
	reqID := uuid.New()
	matches := []domain.Match{
		{ID: uuid.New(), RequestID: reqID, TechnicianID: uuid.New(), QuoteStatus: domain.QuotePending},
		{ID: uuid.New(), RequestID: reqID, TechnicianID: uuid.New(), QuoteStatus: domain.QuotePending},
		{ID: uuid.New(), RequestID: reqID, TechnicianID: uuid.New(), QuoteStatus: domain.QuotePending},
	}
	q := &fakeQuerier{tags: []string{"INSERT 0 1", "INSERT 0 0", "INSERT 0 1"}}

	inserted, err := (&Repository{q: q}).InsertMatches(context.Background(), matches)

	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Contains(t, insertMatchQuery, "ON CONFLICT (request_id, technician_id) DO NOTHING")
}

func TestMatchRowKeepsPriceToTheCent(t *testing.T) {
	price := decimal.RequireFromString("15000.5")
	eta := 48
	distance := 2.4
	m := domain.Match{
		ID:             uuid.New(),
		RequestID:      uuid.New(),
		TechnicianID:   uuid.New(),
		TechnicianName: "Marta Gómez",
		Score:          159,
		DistanceKm:     &distance,
		QuoteStatus:    domain.QuoteSubmitted,
		Price:          &price,
		ETAHours:       &eta,
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}

	args := matchArgs(m)
	require.Equal(t, "15000.50", *args[10].(*string))

	loaded, err := scanMatch(fakeRow{values: args})
	require.NoError(t, err)
	require.NotNil(t, loaded.Price)
	assert.True(t, price.Equal(*loaded.Price))
	assert.Equal(t, domain.QuoteSubmitted, loaded.QuoteStatus)
	assert.Equal(t, &eta, loaded.ETAHours)
}

func TestMatchRowRejectsUnparseablePrice(t *testing.T) {
	args := matchArgs(domain.Match{QuoteStatus: domain.QuoteSubmitted})
	bad := "quince mil"
	args[10] = &bad

	_, err := scanMatch(fakeRow{values: args})

	assert.Error(t, err)
}

func TestGetRequestMapsMissingRowToNotFound(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}

	_, err := (&Repository{q: q}).GetRequest(context.Background(), uuid.New())

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateMatchMissingRowIsNotFound(t *testing.T) {
	q := &fakeQuerier{tag: "UPDATE 0"}

	err := (&Repository{q: q}).UpdateMatch(context.Background(), domain.Match{ID: uuid.New(), RequestID: uuid.New()})

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
