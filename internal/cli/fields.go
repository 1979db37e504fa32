package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lvillar/pdfmerge/placeholder"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields [file]",
	Short: "List the placeholders of a template",
	Long: `List the {{field}} placeholders of a template file, or of a saved template
with --template, in order of first appearance.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFields,
}

var fieldsTemplate string

func init() {
	fieldsCmd.Flags().StringVarP(&fieldsTemplate, "template", "t", "", "saved template ID")
	rootCmd.AddCommand(fieldsCmd)
}

func runFields(cmd *cobra.Command, args []string) error {
	var content string
	switch {
	case len(args) == 1:
		raw, err := readInput(cmd, args[0])
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		content = string(raw)
	case fieldsTemplate != "":
		st, err := openStore()
		if err != nil {
			return err
		}
		tpl, err := st.GetTemplate(cmd.Context(), fieldsTemplate)
		if err != nil {
			return fmt.Errorf("failed to get template: %w", err)
		}
		content = tpl.Content
	default:
		return fmt.Errorf("a template file or --template is required")
	}

	fields := placeholder.Extract(content)
	if len(fields) == 0 {
		cmd.Println("No fields found.")
		return nil
	}
	counts := placeholder.Count(content)
	for _, f := range fields {
		cmd.Printf("%s\t%d\n", f, counts[f])
	}
	return nil
}
