package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/converter"
	"github.com/Mahenur-Islam77/zenith-global-data-warehouse/pkg/model"
)

// Opener opens a named extract file
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Describe() string
}

// DirOpener opens extracts from a local directory
type DirOpener struct {
	Dir string
}

// Open opens a file relative to the directory
func (d DirOpener) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.Dir, name))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Describe names the directory
func (d DirOpener) Describe() string {
	return "dir:" + d.Dir
}

// DelimitedSource parses one delimited file with a header row per dataset
type DelimitedSource struct {
	opener    Opener
	conv      *converter.TypeConverter
	logger    *zap.Logger
	files     map[model.Kind]string
	delimiter rune
}

// NewDelimitedSource creates a source over opener. files overrides the default
// file name of a dataset; delimiter defaults to a comma.
func NewDelimitedSource(opener Opener, conv *converter.TypeConverter, logger *zap.Logger, files map[model.Kind]string, delimiter rune) (*DelimitedSource, error) {
	if opener == nil {
		return nil, errors.New("opener cannot be nil")
	}
	if conv == nil {
		return nil, errors.New("converter cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if delimiter == 0 {
		delimiter = ','
	}
	names := make(map[model.Kind]string, len(files))
	for k, v := range files {
		names[k] = v
	}
	return &DelimitedSource{
		opener:    opener,
		conv:      conv,
		logger:    logger.Named("delimited-source"),
		files:     names,
		delimiter: delimiter,
	}, nil
}

// Describe names the underlying location
func (s *DelimitedSource) Describe() string {
	return s.opener.Describe()
}

func (s *DelimitedSource) fileName(kind model.Kind) string {
	if name, ok := s.files[kind]; ok && name != "" {
		return name
	}
	return model.MustLookup(kind).FileName
}

// Extract reads and types every row of the dataset's file
func (s *DelimitedSource) Extract(ctx context.Context, kind model.Kind) (*model.Batch, error) {
	ds, ok := model.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", kind)
	}
	name := s.fileName(kind)

	rc, err := s.opener.Open(ctx, name)
	if err != nil {
		return nil, defect(kind, 0, "", fmt.Errorf("failed to open %s: %w", name, err))
	}
	defer rc.Close()

	batch, err := s.parse(ctx, ds, rc)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Parsed extract",
		zap.String("dataset", string(kind)),
		zap.String("file", name),
		zap.Int("rows", batch.Len()))
	return batch, nil
}

func (s *DelimitedSource) parse(ctx context.Context, ds *model.Dataset, r io.Reader) (*model.Batch, error) {
	reader := csv.NewReader(r)
	reader.Comma = s.delimiter
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, defect(ds.Kind, 0, "", errors.New("file is empty"))
	}
	if err != nil {
		return nil, defect(ds.Kind, 0, "", fmt.Errorf("failed to read header: %w", err))
	}

	// Map each schema column to its header position
	positions := make([]int, len(ds.Metadata.Columns))
	for i := range positions {
		positions[i] = -1
	}
	for idx, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		col := ds.Metadata.GetColumnByName(h)
		if col == nil {
			s.logger.Warn("Ignoring unknown column",
				zap.String("dataset", string(ds.Kind)),
				zap.String("column", h))
			continue
		}
		for i := range ds.Metadata.Columns {
			if ds.Metadata.Columns[i].Name == col.Name {
				positions[i] = idx
			}
		}
	}
	for i, col := range ds.Metadata.Columns {
		if positions[i] < 0 {
			return nil, defect(ds.Kind, 0, col.NameFor(model.StageRaw), errors.New("required column missing from header"))
		}
	}

	batch := &model.Batch{Dataset: ds.Kind, Stage: model.StageRaw}
	for row := 1; ; row++ {
		if row%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, defect(ds.Kind, row, "", err)
		}

		rec := make(model.Record, len(ds.Metadata.Columns))
		for i, col := range ds.Metadata.Columns {
			v, err := s.conv.ParseRaw(fields[positions[i]], col)
			if err != nil {
				return nil, defect(ds.Kind, row, col.NameFor(model.StageRaw), err)
			}
			rec[col.NameFor(model.StageRaw)] = v
		}
		batch.Rows = append(batch.Rows, rec)
	}
	return batch, nil
}
