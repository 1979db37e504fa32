package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvillar/pdfmerge"
	"github.com/lvillar/pdfmerge/inspect"
	"github.com/lvillar/pdfmerge/raster"
	"github.com/lvillar/pdfmerge/store"
	"github.com/lvillar/pdfmerge/store/memory"
)

func testGroup(t *testing.T, rows ...int) *pdfmerge.Group {
	t.Helper()
	r := raster.RasterizerFunc(func(ctx context.Context, markup string) (*raster.Bitmap, error) {
		return raster.NewBitmap(raster.PageWidth, 100), nil
	})
	engine := pdfmerge.New(pdfmerge.WithRasterizer(r))
	data := make([][]any, 0, 5)
	for i := range 5 {
		data = append(data, []any{i})
	}
	res, err := engine.RenderBatch(context.Background(), pdfmerge.BatchRequest{
		TemplateID:   "tpl-1",
		TemplateName: "Statement",
		Content:      "<p>{{N}}</p>",
		Mapping:      map[string]string{"N": "N"},
		Headers:      []string{"N"},
		Rows:         data,
		Selected:     rows,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Group)
	return res.Group
}

func TestWriteGroup(t *testing.T) {
	st := memory.New()
	w := &Writer{Store: st}
	dir := filepath.Join(t.TempDir(), "out")

	files, err := w.WriteGroup(context.Background(), dir, testGroup(t, 4, 1), Options{
		ImportID:     "imp-1",
		CombinedName: CombinedName("Statement"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "statement-5.pdf"),
		filepath.Join(dir, "statement-2.pdf"),
		filepath.Join(dir, "statement-batch.pdf"),
	}, files)

	info, err := inspect.ReadFile(files[2])
	require.NoError(t, err)
	assert.Equal(t, 2, info.Pages)

	records, err := st.ListArtifacts(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "tpl-1", rec.TemplateID)
		assert.Equal(t, "imp-1", rec.ImportID)
		fi, err := os.Stat(rec.FilePath)
		require.NoError(t, err)
		assert.Equal(t, fi.Size(), rec.Size)
		assert.WithinDuration(t, time.Now(), rec.CreatedAt, time.Minute)
	}
}

func TestWriteGroupSingleMemberNotCombined(t *testing.T) {
	w := &Writer{}
	dir := t.TempDir()
	files, err := w.WriteGroup(context.Background(), dir, testGroup(t, 0), Options{CombinedName: "all.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "statement-1.pdf")}, files)
	_, err = os.Stat(filepath.Join(dir, "all.pdf"))
	assert.True(t, os.IsNotExist(err))
}

// liveStore refuses writes under a cancelled context, like a database driver.
type liveStore struct {
	*memory.Store
}

func (s liveStore) SaveArtifact(ctx context.Context, a *store.ArtifactRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.SaveArtifact(ctx, a)
}

func TestWriteGroupRecordsAfterCancel(t *testing.T) {
	st := liveStore{memory.New()}
	w := &Writer{Store: st}
	g := testGroup(t, 0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	files, err := w.WriteGroup(ctx, t.TempDir(), g, Options{ImportID: "imp-1"})
	require.NoError(t, err)
	require.Len(t, files, 2)

	records, err := st.ListArtifacts(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
