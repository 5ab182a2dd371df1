// Package view derives the analytical model from the clean store. Views are
// recomputed on every build and never cached.
package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/resolver"
)

// Name identifies a view
type Name string

const (
	DimCustomer Name = "dim_customer"
	DimProduct  Name = "dim_product"
	DimStore    Name = "dim_store"
	FactSales   Name = "fact_sales"
	FactReturns Name = "fact_returns"
)

// Delivery states of a sales order
const (
	DeliveryOnTime  = "On Time"
	DeliveryLate    = "Late"
	DeliveryUnknown = resolver.Unknown
)

// Names lists every view in build order
func Names() []Name {
	return []Name{DimCustomer, DimProduct, DimStore, FactSales, FactReturns}
}

// ParseName validates a view name
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Names() {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// Reader provides the current clean batch of a dataset
type Reader interface {
	Read(ctx context.Context, stage model.Stage, kind model.Kind) (*model.Batch, error)
}

// Table is one materialized view
type Table struct {
	Name    Name           `json:"name" yaml:"name"`
	Columns []string       `json:"columns" yaml:"columns"`
	Rows    []model.Record `json:"rows" yaml:"rows"`
	BuiltAt time.Time      `json:"built_at" yaml:"built_at"`
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Builder computes views from a reader
type Builder struct {
	reader     Reader
	logger     *zap.Logger
	now        func() time.Time
	categories *resolver.CategoryNormalizer
}

// Option configures a Builder
type Option func(*Builder) error

// WithClock sets the reference clock used for ages
func WithClock(now func() time.Time) Option {
	return func(b *Builder) error {
		b.now = now
		return nil
	}
}

// WithCategorySubstitutions replaces the table used to join product specs to
// the category map
func WithCategorySubstitutions(subs map[string]string) Option {
	return func(b *Builder) error {
		n, err := resolver.NewCategoryNormalizer(subs, nil, b.logger)
		if err != nil {
			return fmt.Errorf("failed to build category normalizer: %w", err)
		}
		b.categories = n
		return nil
	}
}

// NewBuilder creates a view builder
func NewBuilder(reader Reader, logger *zap.Logger, opts ...Option) (*Builder, error) {
	if reader == nil {
		return nil, errors.New("reader cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	b := &Builder{reader: reader, logger: logger.Named("view"), now: time.Now}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.categories == nil {
		n, err := resolver.NewCategoryNormalizer(resolver.DefaultCategorySubstitutions(), nil, b.logger)
		if err != nil {
			return nil, err
		}
		b.categories = n
	}
	return b, nil
}

// Build computes one view from the current clean store
func (b *Builder) Build(ctx context.Context, name Name) (*Table, error) {
	snap := &snapshot{ctx: ctx, reader: b.reader}
	return b.build(name, snap)
}

// BuildAll computes every view concurrently. Datasets are read once and shared
// between views.
func (b *Builder) BuildAll(ctx context.Context) (map[Name]*Table, error) {
	g, gctx := errgroup.WithContext(ctx)
	snap := &snapshot{ctx: gctx, reader: b.reader}

	var mu sync.Mutex
	out := make(map[Name]*Table, len(Names()))
	for _, name := range Names() {
		name := name
		g.Go(func() error {
			t, err := b.build(name, snap)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = t
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Builder) build(name Name, snap *snapshot) (*Table, error) {
	start := time.Now()
	now := b.now().UTC()

	var t *Table
	var err error
	switch name {
	case DimCustomer:
		t, err = buildDimCustomer(snap, now)
	case DimProduct:
		t, err = buildDimProduct(snap, b.categories)
	case DimStore:
		t, err = buildDimStore(snap)
	case FactSales:
		t, err = buildFactSales(snap)
	case FactReturns:
		t, err = buildFactReturns(snap)
	default:
		return nil, fmt.Errorf("unknown view %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", name, err)
	}
	t.Name = name
	t.BuiltAt = now

	b.logger.Debug("Built view",
		zap.String("view", string(name)),
		zap.Int("rows", t.Len()),
		zap.Duration("duration", time.Since(start)))
	return t, nil
}

// snapshot reads each clean dataset at most once per build
type snapshot struct {
	ctx    context.Context
	reader Reader

	mu      sync.Mutex
	batches map[model.Kind]*model.Batch
	errs    map[model.Kind]error
}

// primary returns a dataset the view cannot be built without
func (s *snapshot) primary(kind model.Kind) (*model.Batch, error) {
	return s.load(kind)
}

// lookup returns a dimension dataset indexed by field; a missing dataset
// yields an empty index so every join resolves to Unknown
func (s *snapshot) lookup(kind model.Kind, field string) (map[string]model.Record, error) {
	b, err := s.load(kind)
	if errors.Is(err, model.ErrDatasetUnavailable) {
		return map[string]model.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	return b.Index(field), nil
}

func (s *snapshot) load(kind model.Kind) (*model.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batches == nil {
		s.batches = make(map[model.Kind]*model.Batch)
		s.errs = make(map[model.Kind]error)
	}
	if b, ok := s.batches[kind]; ok {
		return b, s.errs[kind]
	}
	b, err := s.reader.Read(s.ctx, model.StageClean, kind)
	s.batches[kind] = b
	s.errs[kind] = err
	return b, err
}

// text returns a joined attribute or Unknown when unresolved
func text(row model.Record, field string) string {
	if row == nil {
		return resolver.Unknown
	}
	s := model.KeyString(row[field])
	if s == "" {
		return resolver.Unknown
	}
	return s
}

func value(row model.Record, field string) interface{} {
	if row == nil {
		return nil
	}
	return row[field]
}
