// Package archive writes the members of a batch group to a directory and
// records each written file in an artifact store.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lvillar/pdfmerge"
	"github.com/lvillar/pdfmerge/store"
)

// Writer writes groups to disk. Store and Log may be nil.
type Writer struct {
	Store store.ArtifactStore
	Log   *zap.Logger
}

// Options controls a single WriteGroup call.
type Options struct {
	// ImportID is recorded with every artifact.
	ImportID string
	// CombinedName, when set, also writes all members merged into one file
	// of that name. Groups with a single member are never combined.
	CombinedName string
}

// CombinedName returns the merged file name used for a template.
func CombinedName(templateName string) string {
	return pdfmerge.Slug(templateName) + "-batch.pdf"
}

// WriteGroup writes every member of g into dir and returns the written paths
// in member order, followed by the combined file when one was written.
// Failing to record an artifact is logged and does not fail the write.
// Written files are recorded even when ctx is already cancelled.
func (w *Writer) WriteGroup(ctx context.Context, dir string, g *pdfmerge.Group, opts Options) ([]string, error) {
	recordCtx := context.WithoutCancel(ctx)
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	var files []string
	for _, a := range g.Members {
		path := filepath.Join(dir, a.Name)
		if err := os.WriteFile(path, a.Bytes, 0o644); err != nil {
			return files, fmt.Errorf("archive: %w", err)
		}
		files = append(files, path)
		if w.Store == nil {
			continue
		}
		rec := &store.ArtifactRecord{
			ID:         a.ID,
			Name:       a.Name,
			TemplateID: a.TemplateID,
			ImportID:   opts.ImportID,
			RowIndex:   a.RowIndex,
			FilePath:   path,
			Size:       int64(len(a.Bytes)),
			CreatedAt:  a.CreatedAt,
		}
		if err := w.Store.SaveArtifact(recordCtx, rec); err != nil {
			log.Warn("recording artifact", zap.String("name", a.Name), zap.Error(err))
		}
	}

	if opts.CombinedName == "" || len(g.Members) < 2 {
		return files, nil
	}
	doc, err := g.Combine()
	if err != nil {
		return files, fmt.Errorf("archive: combining %s: %w", g.Name, err)
	}
	path := filepath.Join(dir, opts.CombinedName)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return files, fmt.Errorf("archive: %w", err)
	}
	return append(files, path), nil
}
