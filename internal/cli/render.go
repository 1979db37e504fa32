package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a single PDF from a template and JSON values",
	Long: `Render one PDF without saving anything. The template comes from a file
(--file) or the store (--template). Values are a JSON object keyed by
column name, given inline or read from a file with @path.

Examples:
  pdfmerge render -f invoice.html --values '{"Customer":"Ada","Amount":12.5}' -o ada.pdf
  pdfmerge render -t TEMPLATE_ID --values @row.json --map Customer=Name -o out.pdf`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

var (
	renderFile     string
	renderTemplate string
	renderValues   string
	renderMap      []string
	renderOut      string
)

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderFile, "file", "f", "", "template file")
	f.StringVarP(&renderTemplate, "template", "t", "", "saved template ID")
	f.StringVar(&renderValues, "values", "{}", "JSON object of values, or @file")
	f.StringArrayVarP(&renderMap, "map", "m", nil, "field=Column binding, repeatable")
	f.StringVarP(&renderOut, "out", "o", "", "output file (required)")
	renderCmd.MarkFlagsMutuallyExclusive("file", "template")
	_ = renderCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var content, templateID string
	switch {
	case renderFile != "":
		raw, err := readInput(cmd, renderFile)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		content = string(raw)
	case renderTemplate != "":
		st, err := openStore()
		if err != nil {
			return err
		}
		tpl, err := st.GetTemplate(ctx, renderTemplate)
		if err != nil {
			return fmt.Errorf("failed to get template: %w", err)
		}
		content, templateID = tpl.Content, tpl.ID
	default:
		return errors.New("one of --file or --template is required")
	}

	values, err := parseValues(renderValues)
	if err != nil {
		return err
	}
	headers := make([]string, 0, len(values))
	for k := range values {
		headers = append(headers, k)
	}
	mapping, err := parseMapping(renderMap, headers)
	if err != nil {
		return err
	}

	doc, err := appEngine.RenderOne(ctx, content, mapping, values)
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	if err := os.WriteFile(renderOut, doc, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", renderOut, err)
	}
	if templateID != "" {
		st, _ := openStore()
		if err := st.TouchTemplate(ctx, templateID, time.Now().UTC()); err != nil {
			appLogger.Warn("updating template last used time", zap.String("template", templateID), zap.Error(err))
		}
	}

	cmd.Printf("PDF created successfully: %s (%d bytes)\n", renderOut, len(doc))
	return nil
}

func parseValues(s string) (map[string]any, error) {
	raw := []byte(s)
	if len(s) > 0 && s[0] == '@' {
		var err error
		if raw, err = os.ReadFile(s[1:]); err != nil {
			return nil, fmt.Errorf("failed to read values: %w", err)
		}
	}
	values := map[string]any{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("values must be a JSON object: %w", err)
	}
	return values, nil
}
