package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/converter"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

var loadedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rawCustomers() *model.Batch {
	return &model.Batch{
		Dataset:  model.KindCustomer,
		Stage:    model.StageRaw,
		LoadedAt: loadedAt,
		Rows: []model.Record{
			{"customer_id": int64(2), "customer_number": "AW2", "first_name": " Ann ", "last_name": "lee",
				"marital_status": "M", "gender": "F", "birth_date": day(1985, 3, 2), "create_date": day(2021, 1, 1)},
			{"customer_id": nil, "customer_number": "", "first_name": "Bob", "last_name": "Ray",
				"marital_status": "S", "gender": "", "birth_date": nil, "create_date": day(2021, 1, 2)},
			{"customer_id": int64(1), "customer_number": "AW1", "first_name": "Cy", "last_name": "Do",
				"marital_status": "", "gender": "M", "birth_date": nil, "create_date": nil},
		},
	}
}

func cleanSales() *model.Batch {
	return &model.Batch{
		Dataset:  model.KindSalesOrder,
		Stage:    model.StageClean,
		LoadedAt: loadedAt,
		Rows: []model.Record{
			{"order_number": "SO1", "product_id": "P1", "customer_id": int64(1), "store_id": "S1",
				"order_date": day(2021, 1, 10), "ship_date": day(2021, 1, 12), "due_date": nil,
				"quantity": int64(2), "price": 12.5, "sales_amount": 25.0, model.LoadTimestampColumn: loadedAt},
		},
	}
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "bronze_crm_customer", TableName(model.StageRaw, model.KindCustomer))
	assert.Equal(t, "silver_erp_territory", TableName(model.StageClean, model.KindTerritory))
}

func TestMemoryReplaceAndRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zaptest.NewLogger(t))

	_, err := m.Read(ctx, model.StageRaw, model.KindCustomer)
	require.ErrorIs(t, err, model.ErrDatasetUnavailable)

	in := rawCustomers()
	require.NoError(t, m.Replace(ctx, in))

	in.Rows[0]["first_name"] = "mutated"
	got, err := m.Read(ctx, model.StageRaw, model.KindCustomer)
	require.NoError(t, err)
	assert.Equal(t, " Ann ", got.Rows[0]["first_name"], "snapshot is isolated from the caller's batch")

	got.Rows[0]["first_name"] = "mutated again"
	again, err := m.Read(ctx, model.StageRaw, model.KindCustomer)
	require.NoError(t, err)
	assert.Equal(t, " Ann ", again.Rows[0]["first_name"], "readers cannot modify the snapshot")

	_, err = m.Read(ctx, model.StageClean, model.KindCustomer)
	require.ErrorIs(t, err, model.ErrDatasetUnavailable, "stages are separate")
}

func TestMemoryStatusAndUnavailable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zaptest.NewLogger(t))

	require.NoError(t, m.Replace(ctx, &model.Batch{Dataset: model.KindTerritory, Stage: model.StageRaw}))
	require.NoError(t, m.Replace(ctx, rawCustomers()))
	require.NoError(t, m.MarkUnavailable(ctx, model.StageRaw, model.KindStore))

	statuses, err := m.Status(ctx, model.StageRaw)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, model.KindCustomer, statuses[0].Dataset)
	assert.Equal(t, 3, statuses[0].Rows)
	assert.Equal(t, model.KindStore, statuses[1].Dataset)
	assert.False(t, statuses[1].Available)
	assert.Equal(t, model.KindTerritory, statuses[2].Dataset)
	assert.True(t, statuses[2].Available, "an empty dataset is still loaded")

	empty, err := m.Read(ctx, model.StageRaw, model.KindTerritory)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	_, err = m.Read(ctx, model.StageRaw, model.KindStore)
	require.ErrorIs(t, err, model.ErrDatasetUnavailable)
}

func TestMemoryRejectsInvalidBatch(t *testing.T) {
	m := NewMemory(nil)
	assert.Error(t, m.Replace(context.Background(), nil))
	assert.Error(t, m.Replace(context.Background(), &model.Batch{Dataset: "nope", Stage: model.StageRaw}))
	assert.Error(t, m.Replace(context.Background(), &model.Batch{Dataset: model.KindStore, Stage: "gold"}))
}

func TestMemoryAudit(t *testing.T) {
	m := NewMemory(nil)
	ops := []model.CleaningOperation{{RunID: "r1", Dataset: model.KindCustomer, ColumnName: "gender"}}
	require.NoError(t, m.SaveAudit(context.Background(), ops))
	require.NoError(t, m.SaveAudit(context.Background(), ops))
	assert.Len(t, m.Audit(), 2)
}

func newSQLiteWarehouse(t *testing.T) *SQLWarehouse {
	t.Helper()
	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	w, err := NewSQLWarehouse(db, converter.NewTypeConverter(nil), zaptest.NewLogger(t), SQLOptions{BatchSize: 2})
	require.NoError(t, err)
	return w
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	w := newSQLiteWarehouse(t)

	version, err := MigrationVersion(ctx, w.DB())
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	_, err = w.Read(ctx, model.StageRaw, model.KindCustomer)
	require.ErrorIs(t, err, model.ErrDatasetUnavailable)

	in := rawCustomers()
	require.NoError(t, w.Replace(ctx, in))

	got, err := w.Read(ctx, model.StageRaw, model.KindCustomer)
	require.NoError(t, err)
	assert.Equal(t, in.Rows, got.Rows, "raw rows come back verbatim and in input order")
	assert.True(t, loadedAt.Equal(got.LoadedAt))
}

func TestSQLiteCleanStageColumns(t *testing.T) {
	ctx := context.Background()
	w := newSQLiteWarehouse(t)

	in := cleanSales()
	require.NoError(t, w.Replace(ctx, in))

	got, err := w.Read(ctx, model.StageClean, model.KindSalesOrder)
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	row := got.Rows[0]
	assert.Equal(t, day(2021, 1, 12), row["ship_date"])
	assert.NotContains(t, row, "shiping_date")
	assert.Nil(t, row["due_date"])
	assert.Equal(t, int64(2), row["quantity"])
	assert.Equal(t, 12.5, row["price"])
	ts, ok := row[model.LoadTimestampColumn].(time.Time)
	require.True(t, ok)
	assert.True(t, loadedAt.Equal(ts))
}

func TestSQLiteReplaceIsWholesale(t *testing.T) {
	ctx := context.Background()
	w := newSQLiteWarehouse(t)

	require.NoError(t, w.Replace(ctx, rawCustomers()))
	require.NoError(t, w.Replace(ctx, &model.Batch{
		Dataset: model.KindCustomer, Stage: model.StageRaw,
		Rows: []model.Record{{"customer_id": int64(9), "first_name": "Zed"}},
	}))

	got, err := w.Read(ctx, model.StageRaw, model.KindCustomer)
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, int64(9), got.Rows[0]["customer_id"])
	assert.Nil(t, got.Rows[0]["last_name"])

	statuses, err := w.Status(ctx, model.StageRaw)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, 1, statuses[0].Rows)
	assert.True(t, statuses[0].Available)
}

func TestSQLiteMarkUnavailable(t *testing.T) {
	ctx := context.Background()
	w := newSQLiteWarehouse(t)

	require.NoError(t, w.Replace(ctx, rawCustomers()))
	require.NoError(t, w.MarkUnavailable(ctx, model.StageRaw, model.KindCustomer))

	_, err := w.Read(ctx, model.StageRaw, model.KindCustomer)
	require.ErrorIs(t, err, model.ErrDatasetUnavailable)

	var n int
	require.NoError(t, w.DB().Get(&n, "SELECT COUNT(*) FROM bronze_crm_customer"))
	assert.Zero(t, n)
}

func TestSQLiteSaveAudit(t *testing.T) {
	ctx := context.Background()
	w := newSQLiteWarehouse(t)

	ops := []model.CleaningOperation{
		{RunID: "run-1", Dataset: model.KindCustomer, ColumnName: "first_name", OriginalValue: " Ann ",
			NewValue: "Ann", RowIdentifier: "2", CleaningOperation: "trim", CleaningReason: "whitespace", CleanedAt: loadedAt},
		{RunID: "run-1", Dataset: model.KindCustomer, ColumnName: "birth_date", OriginalValue: day(2030, 1, 1),
			NewValue: nil, RowIdentifier: "3", CleaningOperation: "null_invalid", CleaningReason: "date_in_future", CleanedAt: loadedAt},
		{RunID: "run-1", Dataset: model.KindSalesOrder, ColumnName: "price", OriginalValue: -3.5,
			NewValue: nil, RowIdentifier: "SO1", CleaningOperation: "null_invalid", CleaningReason: "non_positive", CleanedAt: loadedAt},
	}
	require.NoError(t, w.SaveAudit(ctx, ops))
	require.NoError(t, w.SaveAudit(ctx, nil))

	var rows []struct {
		Column   string  `db:"column_name"`
		Original *string `db:"original_value"`
		New      *string `db:"new_value"`
	}
	require.NoError(t, w.DB().Select(&rows,
		"SELECT column_name, original_value, new_value FROM silver_cleansing_audit WHERE run_id = ? ORDER BY row_identifier", "run-1"))
	require.Len(t, rows, 3)
	assert.Equal(t, " Ann ", *rows[0].Original)
	assert.Equal(t, "Ann", *rows[0].New)
	assert.Equal(t, "2030-01-01T00:00:00Z", *rows[1].Original)
	assert.Nil(t, rows[1].New)
	assert.Equal(t, "-3.5", *rows[2].Original)
}

func newMockWarehouse(t *testing.T) (*SQLWarehouse, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	w, err := NewSQLWarehouse(sqlx.NewDb(db, "sqlmock"), converter.NewTypeConverter(nil), zaptest.NewLogger(t), SQLOptions{BatchSize: 2})
	require.NoError(t, err)
	return w, mock
}

func TestReplaceTransaction(t *testing.T) {
	insertErr := errors.New("disk full")

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		expectErr error
	}{
		{
			name: "commits after delete, batched inserts and status",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`DELETE FROM "bronze_crm_customer"`).WillReturnResult(sqlmock.NewResult(0, 5))
				mock.ExpectExec(`INSERT INTO "bronze_crm_customer"`).WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectExec(`INSERT INTO "bronze_crm_customer"`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO warehouse_datasets`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "rolls back when an insert fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`DELETE FROM "bronze_crm_customer"`).WillReturnResult(sqlmock.NewResult(0, 5))
				mock.ExpectExec(`INSERT INTO "bronze_crm_customer"`).WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectExec(`INSERT INTO "bronze_crm_customer"`).WillReturnError(insertErr)
				mock.ExpectRollback()
			},
			expectErr: insertErr,
		},
		{
			name: "rolls back when the status update fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`DELETE FROM "bronze_crm_customer"`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`INSERT INTO "bronze_crm_customer"`).WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectExec(`INSERT INTO "bronze_crm_customer"`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO warehouse_datasets`).WillReturnError(insertErr)
				mock.ExpectRollback()
			},
			expectErr: insertErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, mock := newMockWarehouse(t)
			tt.setupMock(mock)

			err := w.Replace(context.Background(), rawCustomers())
			if tt.expectErr != nil {
				require.ErrorIs(t, err, tt.expectErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReadUnknownDatasetStatus(t *testing.T) {
	w, mock := newMockWarehouse(t)
	mock.ExpectQuery(`SELECT stage, dataset, row_count, loaded_at, available`).
		WithArgs("raw", "erp_store").
		WillReturnRows(sqlmock.NewRows([]string{"stage", "dataset", "row_count", "loaded_at", "available"}))

	_, err := w.Read(context.Background(), model.StageRaw, model.KindStore)
	require.ErrorIs(t, err, model.ErrDatasetUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGooseDialect(t *testing.T) {
	for driver, want := range map[string]string{"sqlite": "sqlite", "pgx": "postgres", "postgres": "postgres"} {
		got, err := gooseDialect(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := gooseDialect("snowflake")
	assert.Error(t, err)
}
