// Package store defines the records kept around the rendering pipeline and
// the interfaces of the stores that persist them.
//
// Templates and datasets are inputs created independently of rendering; a
// render only reads them. Artifact records describe generated documents and
// are written once and never updated, only deleted.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Errors returned by store implementations.
var (
	ErrNotFound       = errors.New("store: not found")
	ErrInvalidDataset = errors.New("store: invalid dataset")
)

// Template is a named markup document with {{field}} placeholders.
type Template struct {
	ID      string
	Name    string
	Content string
	// LastUsed is updated whenever the template is saved or rendered.
	LastUsed  time.Time
	CreatedAt time.Time
}

// Dataset is an imported table. Every row is aligned by index to Headers.
type Dataset struct {
	ID          string
	FileName    string
	FileType    string
	Headers     []string
	Data        [][]any
	RowCount    int
	ColumnCount int
	ImportedAt  time.Time
}

// NewDataset returns a dataset with its counts filled in.
func NewDataset(fileName string, headers []string, data [][]any) Dataset {
	return Dataset{
		FileName:    fileName,
		Headers:     headers,
		Data:        data,
		RowCount:    len(data),
		ColumnCount: len(headers),
	}
}

// Validate checks that the counts agree with the data and every row has one
// cell per header.
func (d *Dataset) Validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%w: no headers", ErrInvalidDataset)
	}
	if d.ColumnCount != len(d.Headers) {
		return fmt.Errorf("%w: column count %d, %d headers", ErrInvalidDataset, d.ColumnCount, len(d.Headers))
	}
	if d.RowCount != len(d.Data) {
		return fmt.Errorf("%w: row count %d, %d rows", ErrInvalidDataset, d.RowCount, len(d.Data))
	}
	for i, row := range d.Data {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidDataset, i, len(row), len(d.Headers))
		}
	}
	return nil
}

// ArtifactRecord is the persisted metadata of a generated document.
type ArtifactRecord struct {
	ID         string
	Name       string
	TemplateID string
	ImportID   string
	RowIndex   int
	FilePath   string
	Size       int64
	CreatedAt  time.Time
}

// TemplateStore persists templates. List returns the most recently used
// first.
type TemplateStore interface {
	SaveTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)
	TouchTemplate(ctx context.Context, id string, at time.Time) error
	DeleteTemplate(ctx context.Context, id string) error
}

// DatasetStore persists imported datasets. List returns the newest first.
type DatasetStore interface {
	SaveDataset(ctx context.Context, d *Dataset) error
	GetDataset(ctx context.Context, id string) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]Dataset, error)
	DeleteDataset(ctx context.Context, id string) error
}

// ArtifactStore persists artifact records. List returns the newest first.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, a *ArtifactRecord) error
	GetArtifact(ctx context.Context, id string) (*ArtifactRecord, error)
	ListArtifacts(ctx context.Context) ([]ArtifactRecord, error)
	DeleteArtifact(ctx context.Context, id string) error
}

// Store bundles the three stores.
type Store interface {
	TemplateStore
	DatasetStore
	ArtifactStore
	Close() error
}
