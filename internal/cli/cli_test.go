package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/lvillar/pdfmerge"
	"github.com/lvillar/pdfmerge/raster"
	"github.com/lvillar/pdfmerge/store/memory"
)

// recorder is a rasterizer that keeps every markup it is given and fails
// markup containing FAIL.
type recorder struct {
	mu      sync.Mutex
	markups []string
}

func (r *recorder) Rasterize(ctx context.Context, markup string) (*raster.Bitmap, error) {
	r.mu.Lock()
	r.markups = append(r.markups, markup)
	r.mu.Unlock()
	if strings.Contains(markup, "FAIL") {
		return nil, errors.New("boom")
	}
	return raster.NewBitmap(raster.PageWidth, 120), nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.markups...)
}

// setupTestApp injects an in-memory store and an engine with a recording
// rasterizer, and resets every flag afterwards.
func setupTestApp(t *testing.T) (*memory.Store, *recorder) {
	t.Helper()
	st := memory.New()
	rec := &recorder{}
	appStore = st
	appEngine = pdfmerge.New(pdfmerge.WithRasterizer(rec), pdfmerge.WithConcurrency(1))
	t.Cleanup(func() {
		appStore = nil
		appEngine = nil
		resetFlags(rootCmd)
	})
	return st, rec
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns everything written to
// stdout and stderr.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
