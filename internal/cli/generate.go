package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lvillar/pdfmerge"
	"github.com/lvillar/pdfmerge/internal/archive"
	"github.com/lvillar/pdfmerge/placeholder"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render one PDF per dataset row",
	Long: `Render a saved template once for each selected row of an imported dataset.

Rows are zero-based and may be listed and ranged, e.g. --rows 3,0,5-7. Output
files follow the selection order and are named after the template and the
one-based row number, e.g. invoice-4.pdf. Rows that fail are reported and do
not stop the others.

Fields bind to the column of the same name. Use --map field=Column to bind
them to another column, or field= to leave them empty.

Examples:
  pdfmerge generate -t TEMPLATE_ID -i IMPORT_ID -o out/
  pdfmerge generate -t TEMPLATE_ID -i IMPORT_ID --rows 0-9 --map Customer=Name -o out/ --combine`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var (
	generateTemplate string
	generateImport   string
	generateRows     string
	generateMap      []string
	generateOut      string
	generateCombine  bool
	generateJSON     bool
)

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateTemplate, "template", "t", "", "template ID (required)")
	f.StringVarP(&generateImport, "import", "i", "", "dataset ID (required)")
	f.StringVarP(&generateRows, "rows", "r", "", "zero-based rows to render (default: all)")
	f.StringArrayVarP(&generateMap, "map", "m", nil, "field=Column binding, repeatable")
	f.StringVarP(&generateOut, "out", "o", "", "output directory (required)")
	f.BoolVar(&generateCombine, "combine", false, "also write all documents merged into one PDF")
	f.BoolVar(&generateJSON, "json", false, "print the batch summary as JSON")
	_ = generateCmd.MarkFlagRequired("template")
	_ = generateCmd.MarkFlagRequired("import")
	_ = generateCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	tpl, err := st.GetTemplate(ctx, generateTemplate)
	if err != nil {
		return fmt.Errorf("failed to get template: %w", err)
	}
	ds, err := st.GetDataset(ctx, generateImport)
	if err != nil {
		return fmt.Errorf("failed to get dataset: %w", err)
	}
	rows, err := parseRows(generateRows, ds.RowCount)
	if err != nil {
		return err
	}
	mapping, err := parseMapping(generateMap, ds.Headers)
	if err != nil {
		return err
	}

	if unmapped := placeholder.Unmapped(tpl.Content, mapping); len(unmapped) > 0 {
		cmd.PrintErrf("Warning: fields without a column render empty: %s\n", formatFields(unmapped))
	}

	res, batchErr := appEngine.RenderBatch(ctx, pdfmerge.BatchRequest{
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		Content:      tpl.Content,
		Mapping:      mapping,
		Headers:      ds.Headers,
		Rows:         ds.Data,
		Selected:     rows,
	})
	if res == nil {
		return batchErr
	}
	if err := st.TouchTemplate(ctx, tpl.ID, time.Now().UTC()); err != nil {
		appLogger.Warn("updating template last used time", zap.String("template", tpl.ID), zap.Error(err))
	}

	var files []string
	if res.Group != nil {
		opts := archive.Options{ImportID: ds.ID}
		if generateCombine {
			opts.CombinedName = archive.CombinedName(tpl.Name)
		}
		w := &archive.Writer{Store: st, Log: appLogger}
		if files, err = w.WriteGroup(ctx, generateOut, res.Group, opts); err != nil {
			return fmt.Errorf("failed to write documents: %w", err)
		}
	}

	if generateJSON {
		out := struct {
			pdfmerge.Summary
			Files []string `json:"files,omitempty"`
		}{res.Summary(), files}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
	} else {
		printBatch(cmd, res, files)
	}

	if batchErr != nil {
		return batchErr
	}
	if res.Failed > 0 {
		return errors.New("some rows failed")
	}
	return nil
}

func printBatch(cmd *cobra.Command, res *pdfmerge.BatchResult, files []string) {
	if res.Group != nil {
		cmd.Printf("%s\n\n", res.Group.Name)
	}
	for _, f := range files {
		cmd.Printf("  %s\n", f)
	}
	if len(res.Failures) > 0 {
		cmd.Println("\nFailed rows:")
		for _, f := range res.Failures {
			cmd.Printf("  row %d: %s\n", f.RowIndex, f.Reason)
		}
	}
	cmd.Printf("\nGenerated %d, failed %d", res.Succeeded, res.Failed)
	if res.Cancelled {
		cmd.Printf(", skipped %d (cancelled)", res.Skipped)
	}
	cmd.Println()
}
