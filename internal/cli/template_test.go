package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvillar/pdfmerge/store"
)

func TestTemplateCmd_HasSubcommands(t *testing.T) {
	commandNames := make([]string, 0)
	for _, cmd := range templateCmd.Commands() {
		commandNames = append(commandNames, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"add", "list", "show", "delete"}, commandNames)
}

func TestTemplateAddCmd_RequiresTwoArgs(t *testing.T) {
	setupTestApp(t)
	_, err := execute(t, "template", "add", "Invoice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestTemplateAddCmd_FromFile(t *testing.T) {
	st, _ := setupTestApp(t)
	path := writeFile(t, "invoice.html", "<h1>{{Customer}}</h1><p>{{Amount}} {{Customer}}</p>")

	out, err := execute(t, "template", "add", "Invoice", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved template")
	assert.Contains(t, out, "Fields: Customer, Amount")

	list, err := st.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Invoice", list[0].Name)
}

func TestTemplateAddCmd_FromStdin(t *testing.T) {
	st, _ := setupTestApp(t)
	rootCmd.SetIn(strings.NewReader("<p>{{Name}}</p>"))
	defer rootCmd.SetIn(nil)

	_, err := execute(t, "template", "add", "Letter", "-")
	require.NoError(t, err)

	list, err := st.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "<p>{{Name}}</p>", list[0].Content)
}

func TestTemplateAddCmd_RejectsEmpty(t *testing.T) {
	setupTestApp(t)
	_, err := execute(t, "template", "add", "Empty", writeFile(t, "empty.html", "  \n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestTemplateListCmd(t *testing.T) {
	st, _ := setupTestApp(t)

	out, err := execute(t, "template", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No templates saved.")

	require.NoError(t, st.SaveTemplate(context.Background(), &store.Template{ID: "t1", Name: "Invoice", Content: "{{A}}"}))
	out, err = execute(t, "template", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "t1")
	assert.Contains(t, out, "Invoice")
	assert.Contains(t, out, "Total: 1 templates")
}

func TestTemplateShowCmd(t *testing.T) {
	st, _ := setupTestApp(t)
	require.NoError(t, st.SaveTemplate(context.Background(), &store.Template{ID: "t1", Name: "Invoice", Content: "<p>{{A}} {{B}} {{A}}</p>"}))

	out, err := execute(t, "template", "show", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "Template: t1")
	assert.Contains(t, out, "A (2)")
	assert.Contains(t, out, "B (1)")
	assert.Contains(t, out, "<p>{{A}} {{B}} {{A}}</p>")

	_, err = execute(t, "template", "show", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTemplateDeleteCmd(t *testing.T) {
	st, _ := setupTestApp(t)
	require.NoError(t, st.SaveTemplate(context.Background(), &store.Template{ID: "t1", Name: "Invoice", Content: "x"}))

	out, err := execute(t, "template", "delete", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted template t1")

	_, err = st.GetTemplate(context.Background(), "t1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
