package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

type datasetKey struct {
	stage model.Stage
	kind  model.Kind
}

// Memory keeps both stores in process. Each dataset is an immutable snapshot
// that Replace swaps under the lock.
type Memory struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	datasets map[datasetKey]*model.Batch
	status   map[datasetKey]DatasetStatus
	audit    []model.CleaningOperation
	now      func() time.Time
}

// NewMemory creates an empty in-memory warehouse
func NewMemory(logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		logger:   logger.Named("memory-store"),
		datasets: make(map[datasetKey]*model.Batch),
		status:   make(map[datasetKey]DatasetStatus),
		now:      time.Now,
	}
}

// Read returns a copy of the current snapshot
func (m *Memory) Read(ctx context.Context, stage model.Stage, kind model.Kind) (*model.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b, ok := m.datasets[datasetKey{stage, kind}]
	m.mu.RUnlock()
	if !ok {
		return nil, unavailable(stage, kind)
	}
	return b.Clone(), nil
}

// Replace publishes a copy of batch as the new snapshot
func (m *Memory) Replace(ctx context.Context, batch *model.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := validateBatch(batch); err != nil {
		return err
	}

	snapshot := batch.Clone()
	if snapshot.LoadedAt.IsZero() {
		snapshot.LoadedAt = m.now().UTC()
	}
	key := datasetKey{batch.Stage, batch.Dataset}

	m.mu.Lock()
	m.datasets[key] = snapshot
	m.status[key] = DatasetStatus{
		Stage:     batch.Stage,
		Dataset:   batch.Dataset,
		Rows:      snapshot.Len(),
		LoadedAt:  snapshot.LoadedAt,
		Available: true,
	}
	m.mu.Unlock()

	m.logger.Debug("Replaced dataset",
		zap.String("stage", string(batch.Stage)),
		zap.String("dataset", string(batch.Dataset)),
		zap.Int("rows", snapshot.Len()))
	return nil
}

// MarkUnavailable drops the snapshot and records the dataset as not loaded
func (m *Memory) MarkUnavailable(ctx context.Context, stage model.Stage, kind model.Kind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := datasetKey{stage, kind}

	m.mu.Lock()
	delete(m.datasets, key)
	m.status[key] = DatasetStatus{Stage: stage, Dataset: kind, LoadedAt: m.now().UTC()}
	m.mu.Unlock()
	return nil
}

// Status lists dataset states in catalog order
func (m *Memory) Status(ctx context.Context, stage model.Stage) ([]DatasetStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]DatasetStatus, 0, len(m.status))
	for key, st := range m.status {
		if key.stage == stage {
			out = append(out, st)
		}
	}
	sortStatus(out)
	return out, nil
}

// SaveAudit appends operations to the in-memory audit trail
func (m *Memory) SaveAudit(ctx context.Context, ops []model.CleaningOperation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.audit = append(m.audit, ops...)
	m.mu.Unlock()
	return nil
}

// Audit returns a copy of the audit trail
func (m *Memory) Audit() []model.CleaningOperation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.CleaningOperation, len(m.audit))
	copy(out, m.audit)
	return out
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

func sortStatus(statuses []DatasetStatus) {
	sort.Slice(statuses, func(i, j int) bool {
		li, lj := letterOf(statuses[i].Dataset), letterOf(statuses[j].Dataset)
		if li != lj {
			return li < lj
		}
		return statuses[i].Dataset < statuses[j].Dataset
	})
}

func letterOf(kind model.Kind) string {
	if ds, ok := model.Lookup(kind); ok {
		return ds.Letter
	}
	return "~"
}
