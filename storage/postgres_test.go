package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoria-scraper/models"
)

// rowResult is a canned QueryRow outcome: either an id/datetime_found pair
// or an error.
type rowResult struct {
	id      int64
	foundAt time.Time
	err     error
}

func (r rowResult) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.id
	*(dest[1].(*time.Time)) = r.foundAt
	return nil
}

// fakeBatchResults serves one rowResult per QueryRow call, in order.
type fakeBatchResults struct {
	rows     []rowResult
	next     int
	closed   bool
	closeErr error
}

func (b *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected Exec")
}

func (b *fakeBatchResults) Query() (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (b *fakeBatchResults) QueryRow() pgx.Row {
	r := b.rows[b.next]
	b.next++
	return r
}

func (b *fakeBatchResults) Close() error {
	b.closed = true
	return b.closeErr
}

// fakeTx records the transaction lifecycle around a SendBatch call.
type fakeTx struct {
	results    pgx.BatchResults
	queued     int
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("unexpected nested Begin")
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

func (t *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	t.queued = b.Len()
	return t.results
}

func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("unexpected CopyFrom")
}

func (t *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("unexpected Prepare")
}

func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected Exec")
}

func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	return rowResult{err: errors.New("unexpected QueryRow")}
}

func (t *fakeTx) Conn() *pgx.Conn { return nil }

// fakePool stands in for the pgx pool behind CarStore.
type fakePool struct {
	tx       pgx.Tx
	beginErr error
	row      pgx.Row
	execSQL  []string
}

func (p *fakePool) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	p.execSQL = append(p.execSQL, sql)
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (p *fakePool) QueryRow(context.Context, string, ...any) pgx.Row { return p.row }

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return p.tx, nil
}

func (p *fakePool) Ping(context.Context) error { return nil }

func (p *fakePool) Close() {}

func TestSaveReportsInsert(t *testing.T) {
	t.Parallel()

	found := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	store := &CarStore{pool: &fakePool{row: rowResult{id: 41, foundAt: found}}}

	car := models.Car{URL: "https://auto.ria.com/auto_bmw_1.html", Title: "BMW 520d", PriceUSD: 21500}
	inserted, err := store.Save(context.Background(), &car)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(41), car.ID)
	assert.Equal(t, found, car.FoundAt)
}

func TestSaveReportsDuplicate(t *testing.T) {
	t.Parallel()

	store := &CarStore{pool: &fakePool{row: rowResult{err: pgx.ErrNoRows}}}

	car := models.Car{URL: "https://auto.ria.com/auto_bmw_1.html"}
	inserted, err := store.Save(context.Background(), &car)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, car.ID)
}

func TestSaveWrapsQueryError(t *testing.T) {
	t.Parallel()

	store := &CarStore{pool: &fakePool{row: rowResult{err: errors.New("connection reset")}}}

	_, err := store.Save(context.Background(), &models.Car{URL: "https://auto.ria.com/auto_bmw_1.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto_bmw_1.html")
}

func TestSaveBatchCountsNewRowsOnly(t *testing.T) {
	t.Parallel()

	results := &fakeBatchResults{rows: []rowResult{
		{id: 1, foundAt: time.Now()},
		{err: pgx.ErrNoRows},
		{id: 2, foundAt: time.Now()},
	}}
	tx := &fakeTx{results: results}
	store := &CarStore{pool: &fakePool{tx: tx}}

	cars := []models.Car{
		{URL: "https://auto.ria.com/auto_audi_1.html"},
		{URL: "https://auto.ria.com/auto_audi_2.html"},
		{URL: "https://auto.ria.com/auto_audi_3.html"},
	}
	inserted, err := store.SaveBatch(context.Background(), cars)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 3, tx.queued)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
	assert.True(t, results.closed)
}

func TestSaveBatchRollsBackOnStatementError(t *testing.T) {
	t.Parallel()

	results := &fakeBatchResults{rows: []rowResult{
		{id: 1, foundAt: time.Now()},
		{err: errors.New("value too long for type")},
	}}
	tx := &fakeTx{results: results}
	store := &CarStore{pool: &fakePool{tx: tx}}

	cars := []models.Car{
		{URL: "https://auto.ria.com/auto_audi_1.html"},
		{URL: "https://auto.ria.com/auto_audi_2.html"},
	}
	inserted, err := store.SaveBatch(context.Background(), cars)
	require.Error(t, err)
	assert.Zero(t, inserted)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
	assert.True(t, results.closed)
}

func TestSaveBatchRollsBackOnCloseError(t *testing.T) {
	t.Parallel()

	results := &fakeBatchResults{
		rows:     []rowResult{{id: 1, foundAt: time.Now()}},
		closeErr: errors.New("deferred constraint violation"),
	}
	tx := &fakeTx{results: results}
	store := &CarStore{pool: &fakePool{tx: tx}}

	inserted, err := store.SaveBatch(context.Background(), []models.Car{
		{URL: "https://auto.ria.com/auto_audi_1.html"},
	})
	require.Error(t, err)
	assert.Zero(t, inserted)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestSaveBatchCommitFailureReturnsZero(t *testing.T) {
	t.Parallel()

	results := &fakeBatchResults{rows: []rowResult{{id: 1, foundAt: time.Now()}}}
	tx := &fakeTx{results: results, commitErr: errors.New("server shutdown")}
	store := &CarStore{pool: &fakePool{tx: tx}}

	inserted, err := store.SaveBatch(context.Background(), []models.Car{
		{URL: "https://auto.ria.com/auto_audi_1.html"},
	})
	require.Error(t, err)
	assert.Zero(t, inserted)
}

func TestSaveBatchEmptyIsNoop(t *testing.T) {
	t.Parallel()

	store := &CarStore{pool: &fakePool{beginErr: errors.New("must not begin")}}

	inserted, err := store.SaveBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestSaveBatchBeginError(t *testing.T) {
	t.Parallel()

	store := &CarStore{pool: &fakePool{beginErr: errors.New("pool exhausted")}}

	_, err := store.SaveBatch(context.Background(), []models.Car{
		{URL: "https://auto.ria.com/auto_audi_1.html"},
	})
	require.Error(t, err)
}

func TestEnsureSchemaCreatesCarsTable(t *testing.T) {
	t.Parallel()

	pool := &fakePool{}
	store := &CarStore{pool: pool}

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.Len(t, pool.execSQL, 1)
	assert.Contains(t, pool.execSQL[0], "CREATE TABLE IF NOT EXISTS cars")
	assert.Contains(t, pool.execSQL[0], "url TEXT NOT NULL UNIQUE")
}
