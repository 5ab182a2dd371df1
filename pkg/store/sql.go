// pkg/store/sql.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/converter"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

const (
	rowSeqColumn     = "row_seq"
	defaultBatchSize = 500
)

// SQLOptions tunes the SQL warehouse
type SQLOptions struct {
	// Rows per INSERT statement
	BatchSize int
	// Timeout applied to each statement; zero disables it
	StatementTimeout time.Duration
}

// SQLWarehouse stores datasets in bronze_/silver_ tables of a SQL database.
// The schema is created by Migrate.
type SQLWarehouse struct {
	db     *sqlx.DB
	conv   *converter.TypeConverter
	logger *zap.Logger
	opts   SQLOptions
	now    func() time.Time
}

// NewSQLWarehouse wraps an open database handle
func NewSQLWarehouse(db *sqlx.DB, conv *converter.TypeConverter, logger *zap.Logger, opts SQLOptions) (*SQLWarehouse, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if conv == nil {
		return nil, errors.New("converter cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &SQLWarehouse{
		db:     db,
		conv:   conv,
		logger: logger.Named("sql-store"),
		opts:   opts,
		now:    time.Now,
	}, nil
}

// DB returns the underlying handle
func (w *SQLWarehouse) DB() *sqlx.DB {
	return w.db
}

func (w *SQLWarehouse) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.opts.StatementTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.opts.StatementTimeout)
}

// Read loads a dataset in its original row order
func (w *SQLWarehouse) Read(ctx context.Context, stage model.Stage, kind model.Kind) (*model.Batch, error) {
	ds, ok := model.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", kind)
	}
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	st, found, err := w.status(ctx, stage, kind)
	if err != nil {
		return nil, err
	}
	if !found || !st.Available {
		return nil, unavailable(stage, kind)
	}

	cols := ds.Metadata.ColumnsFor(stage)
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		quoteColumns(cols), pq.QuoteIdentifier(TableName(stage, kind)), rowSeqColumn)

	rows, err := w.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", TableName(stage, kind), err)
	}
	defer rows.Close()

	batch := &model.Batch{Dataset: kind, Stage: stage, LoadedAt: st.LoadedAt, Rows: make([]model.Record, 0, st.Rows)}
	for rows.Next() {
		row := make(map[string]interface{}, len(cols))
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", TableName(stage, kind), err)
		}
		rec, err := w.conv.ConvertRecord(row, cols)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s row %d: %w", TableName(stage, kind), len(batch.Rows)+1, err)
		}
		batch.Rows = append(batch.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TableName(stage, kind), err)
	}
	return batch, nil
}

// Replace deletes and reinserts a dataset inside one transaction
func (w *SQLWarehouse) Replace(ctx context.Context, batch *model.Batch) (err error) {
	ds, err := validateBatch(batch)
	if err != nil {
		return err
	}
	loadedAt := batch.LoadedAt
	if loadedAt.IsZero() {
		loadedAt = w.now()
	}
	table := TableName(batch.Stage, batch.Dataset)

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", table, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				w.logger.Warn("Rollback failed", zap.String("table", table), zap.Error(rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+pq.QuoteIdentifier(table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	inserted, err := w.batchInsert(ctx, tx, table, ds.Metadata.ColumnsFor(batch.Stage), batch.Rows)
	if err != nil {
		return err
	}

	if err = w.upsertStatus(ctx, tx, batch.Stage, batch.Dataset, len(batch.Rows), loadedAt, true); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}

	w.logger.Info("Replaced dataset",
		zap.String("table", table),
		zap.Int64("rowsInserted", inserted))
	return nil
}

// batchInsert writes rows as multi-row INSERT statements; row_seq records input order
func (w *SQLWarehouse) batchInsert(ctx context.Context, tx *sqlx.Tx, table string, cols []model.Column, rows []model.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	names := make([]string, 0, len(cols)+1)
	names = append(names, rowSeqColumn)
	for _, c := range cols {
		names = append(names, pq.QuoteIdentifier(c.Name))
	}
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", pq.QuoteIdentifier(table), strings.Join(names, ", "))

	var total int64
	for start := 0; start < len(rows); start += w.opts.BatchSize {
		end := start + w.opts.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		placeholders := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*len(names))
		for i, row := range chunk {
			placeholders[i] = rowPlaceholder
			args = append(args, int64(start+i))
			for _, c := range cols {
				args = append(args, bindValue(row[c.Name]))
			}
		}

		query := tx.Rebind(prefix + strings.Join(placeholders, ", "))
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("batch insert into %s failed: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			w.logger.Warn("Couldn't get rows affected", zap.Error(err))
			n = int64(len(chunk))
		}
		total += n
	}
	return total, nil
}

func (w *SQLWarehouse) upsertStatus(ctx context.Context, tx *sqlx.Tx, stage model.Stage, kind model.Kind, rows int, loadedAt time.Time, available bool) error {
	flag := 0
	if available {
		flag = 1
	}
	query := tx.Rebind(`INSERT INTO warehouse_datasets (stage, dataset, row_count, loaded_at, available)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (stage, dataset) DO UPDATE SET
			row_count = excluded.row_count,
			loaded_at = excluded.loaded_at,
			available = excluded.available`)
	if _, err := tx.ExecContext(ctx, query, string(stage), string(kind), int64(rows), loadedAt.UTC(), flag); err != nil {
		return fmt.Errorf("failed to record status of %s %s: %w", stage, kind, err)
	}
	return nil
}

// MarkUnavailable empties the dataset table and flags it as not loaded
func (w *SQLWarehouse) MarkUnavailable(ctx context.Context, stage model.Stage, kind model.Kind) (err error) {
	if _, ok := model.Lookup(kind); !ok {
		return fmt.Errorf("unknown dataset %q", kind)
	}
	table := TableName(stage, kind)

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", table, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+pq.QuoteIdentifier(table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	if err = w.upsertStatus(ctx, tx, stage, kind, 0, w.now(), false); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	w.logger.Warn("Dataset marked unavailable", zap.String("table", table))
	return nil
}

// Status lists the recorded state of each dataset at a stage
func (w *SQLWarehouse) Status(ctx context.Context, stage model.Stage) ([]DatasetStatus, error) {
	query := w.db.Rebind(`SELECT stage, dataset, row_count, loaded_at, available
		FROM warehouse_datasets WHERE stage = ?`)
	rows, err := w.db.QueryxContext(ctx, query, string(stage))
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset status: %w", err)
	}
	defer rows.Close()

	var out []DatasetStatus
	for rows.Next() {
		row := make(map[string]interface{}, 5)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan dataset status: %w", err)
		}
		st, err := w.decodeStatus(row)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset status: %w", err)
	}
	sortStatus(out)
	return out, nil
}

func (w *SQLWarehouse) status(ctx context.Context, stage model.Stage, kind model.Kind) (DatasetStatus, bool, error) {
	query := w.db.Rebind(`SELECT stage, dataset, row_count, loaded_at, available
		FROM warehouse_datasets WHERE stage = ? AND dataset = ?`)
	row := make(map[string]interface{}, 5)
	err := w.db.QueryRowxContext(ctx, query, string(stage), string(kind)).MapScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DatasetStatus{}, false, nil
	}
	if err != nil {
		return DatasetStatus{}, false, fmt.Errorf("failed to query status of %s %s: %w", stage, kind, err)
	}
	st, err := w.decodeStatus(row)
	return st, err == nil, err
}

var statusColumns = []model.Column{
	{Name: "stage", DataType: model.TypeText},
	{Name: "dataset", DataType: model.TypeText},
	{Name: "row_count", DataType: model.TypeInt},
	{Name: "loaded_at", DataType: model.TypeTimestamp},
	{Name: "available", DataType: model.TypeInt},
}

func (w *SQLWarehouse) decodeStatus(row map[string]interface{}) (DatasetStatus, error) {
	rec, err := w.conv.ConvertRecord(row, statusColumns)
	if err != nil {
		return DatasetStatus{}, fmt.Errorf("failed to decode dataset status: %w", err)
	}
	st := DatasetStatus{
		Stage:   model.Stage(fmt.Sprint(rec["stage"])),
		Dataset: model.Kind(fmt.Sprint(rec["dataset"])),
	}
	if n, ok := rec["row_count"].(int64); ok {
		st.Rows = int(n)
	}
	if t, ok := rec["loaded_at"].(time.Time); ok {
		st.LoadedAt = t
	}
	if n, ok := rec["available"].(int64); ok {
		st.Available = n != 0
	}
	return st, nil
}

// SaveAudit appends cleaning operations to silver_cleansing_audit
func (w *SQLWarehouse) SaveAudit(ctx context.Context, ops []model.CleaningOperation) (err error) {
	if len(ops) == 0 {
		return nil
	}
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const cols = 9
	prefix := "INSERT INTO silver_cleansing_audit (run_id, dataset, column_name, original_value, new_value, row_identifier, operation, reason, cleaned_at) VALUES "
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"

	for start := 0; start < len(ops); start += w.opts.BatchSize {
		end := start + w.opts.BatchSize
		if end > len(ops) {
			end = len(ops)
		}
		chunk := ops[start:end]
		placeholders := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*cols)
		for i, op := range chunk {
			placeholders[i] = rowPlaceholder
			args = append(args, op.RunID, string(op.Dataset), op.ColumnName,
				auditValue(op.OriginalValue), auditValue(op.NewValue), op.RowIdentifier,
				op.CleaningOperation, op.CleaningReason, op.CleanedAt.UTC())
		}
		if _, err = tx.ExecContext(ctx, tx.Rebind(prefix+strings.Join(placeholders, ", ")), args...); err != nil {
			return fmt.Errorf("failed to write cleansing audit: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleansing audit: %w", err)
	}
	w.logger.Debug("Saved cleansing audit", zap.Int("operations", len(ops)))
	return nil
}

// auditValue renders a value for the audit trail, preserving null
func auditValue(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	s, ok, err := converter.ToText(v)
	if err != nil || !ok {
		if v == nil {
			return nil
		}
		return fmt.Sprintf("%v", v)
	}
	return s
}

// bindValue strips monotonic clock readings and zones from timestamps so they
// serialize consistently across drivers
func bindValue(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

// Close closes the database handle
func (w *SQLWarehouse) Close() error {
	return w.db.Close()
}

func quoteColumns(cols []model.Column) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c.Name)
	}
	return strings.Join(quoted, ", ")
}
