package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lvillar/pdfmerge/placeholder"
	"github.com/lvillar/pdfmerge/store"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage saved templates",
	Long: `Save, list, show and delete markup templates.

A template is HTML-like markup with {{field}} placeholders, for example:

  <h1>Invoice for {{Customer}}</h1>
  <p>Total due: {{Amount}}</p>`,
}

var templateAddCmd = &cobra.Command{
	Use:   "add [name] [file]",
	Short: "Save a template from a file, or stdin when file is -",
	Args:  cobra.ExactArgs(2),
	RunE:  runTemplateAdd,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates, most recently used first",
	Args:  cobra.NoArgs,
	RunE:  runTemplateList,
}

var templateShowCmd = &cobra.Command{
	Use:   "show [template-id]",
	Short: "Show a template and its fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateShow,
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete [template-id]",
	Short: "Delete a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateDelete,
}

func init() {
	templateCmd.AddCommand(templateAddCmd)
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateShowCmd)
	templateCmd.AddCommand(templateDeleteCmd)
	rootCmd.AddCommand(templateCmd)
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func runTemplateAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	content, err := readInput(cmd, args[1])
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return fmt.Errorf("template %s is empty", args[1])
	}

	t := &store.Template{Name: args[0], Content: string(content)}
	if err := st.SaveTemplate(cmd.Context(), t); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	cmd.Printf("Saved template %s\n", t.ID)
	cmd.Printf("  Name:   %s\n", t.Name)
	cmd.Printf("  Fields: %s\n", formatFields(placeholder.Extract(t.Content)))
	return nil
}

func runTemplateList(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	templates, err := st.ListTemplates(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}
	if len(templates) == 0 {
		cmd.Println("No templates saved.")
		return nil
	}

	cmd.Println("Templates:")
	cmd.Println()
	for _, t := range templates {
		cmd.Printf("  %s\n", t.ID)
		cmd.Printf("    Name:      %s\n", t.Name)
		cmd.Printf("    Fields:    %s\n", formatFields(placeholder.Extract(t.Content)))
		cmd.Printf("    Last used: %s\n", t.LastUsed.Local().Format(timeLayout))
		cmd.Println()
	}
	cmd.Printf("Total: %d templates\n", len(templates))
	return nil
}

func runTemplateShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	t, err := st.GetTemplate(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get template: %w", err)
	}

	counts := placeholder.Count(t.Content)
	cmd.Printf("Template: %s\n\n", t.ID)
	cmd.Printf("  Name:      %s\n", t.Name)
	cmd.Printf("  Created:   %s\n", t.CreatedAt.Local().Format(timeLayout))
	cmd.Printf("  Last used: %s\n", t.LastUsed.Local().Format(timeLayout))
	cmd.Println("\n  Fields:")
	for _, f := range placeholder.Extract(t.Content) {
		cmd.Printf("    %s (%d)\n", f, counts[f])
	}
	cmd.Println("\n  Content:")
	for _, line := range strings.Split(strings.TrimRight(t.Content, "\n"), "\n") {
		cmd.Printf("    %s\n", line)
	}
	return nil
}

func runTemplateDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	if err := st.DeleteTemplate(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	cmd.Printf("Deleted template %s\n", args[0])
	return nil
}

const timeLayout = "2006-01-02 15:04:05"

func formatFields(fields []string) string {
	if len(fields) == 0 {
		return "(none)"
	}
	return strings.Join(fields, ", ")
}
