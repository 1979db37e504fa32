package cli

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lvillar/pdfmerge/binding"
	"github.com/lvillar/pdfmerge/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Manage imported datasets",
	Long: `Import CSV files and manage the saved datasets.

The first record of a CSV file holds the column headers. Blank lines are
skipped.`,
}

var importAddCmd = &cobra.Command{
	Use:   "add [file.csv]",
	Short: "Import a CSV file, or stdin when file is -",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportAdd,
}

var importListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported datasets, newest first",
	Args:  cobra.NoArgs,
	RunE:  runImportList,
}

var importShowCmd = &cobra.Command{
	Use:   "show [import-id]",
	Short: "Show the headers and first rows of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportShow,
}

var importDeleteCmd = &cobra.Command{
	Use:   "delete [import-id]",
	Short: "Delete an imported dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportDelete,
}

// importName overrides the recorded file name, useful with stdin.
var importName string

// showLimit is the number of rows printed by import show.
var showLimit int

func init() {
	importAddCmd.Flags().StringVarP(&importName, "name", "n", "", "file name to record (default: the file's base name)")
	importShowCmd.Flags().IntVarP(&showLimit, "limit", "l", 10, "number of rows to show (0 = all)")

	importCmd.AddCommand(importAddCmd)
	importCmd.AddCommand(importListCmd)
	importCmd.AddCommand(importShowCmd)
	importCmd.AddCommand(importDeleteCmd)
	rootCmd.AddCommand(importCmd)
}

func runImportAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	raw, err := readInput(cmd, args[0])
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}
	name := importName
	if name == "" {
		name = filepath.Base(args[0])
		if args[0] == "-" {
			name = "stdin.csv"
		}
	}

	d, err := store.ReadCSV(name, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	if err := st.SaveDataset(cmd.Context(), &d); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}

	cmd.Printf("Imported %s as %s\n", d.FileName, d.ID)
	cmd.Printf("  Columns: %s\n", strings.Join(d.Headers, ", "))
	cmd.Printf("  Rows:    %d\n", d.RowCount)
	return nil
}

func runImportList(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	datasets, err := st.ListDatasets(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list datasets: %w", err)
	}
	if len(datasets) == 0 {
		cmd.Println("No datasets imported.")
		return nil
	}

	cmd.Println("Datasets:")
	cmd.Println()
	for _, d := range datasets {
		cmd.Printf("  %s\n", d.ID)
		cmd.Printf("    File:     %s\n", d.FileName)
		cmd.Printf("    Columns:  %s\n", strings.Join(d.Headers, ", "))
		cmd.Printf("    Rows:     %d\n", d.RowCount)
		cmd.Printf("    Imported: %s\n", d.ImportedAt.Local().Format(timeLayout))
		cmd.Println()
	}
	cmd.Printf("Total: %d datasets\n", len(datasets))
	return nil
}

func runImportShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	d, err := st.GetDataset(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get dataset: %w", err)
	}

	cmd.Printf("Dataset: %s\n\n", d.ID)
	cmd.Printf("  File:    %s\n", d.FileName)
	cmd.Printf("  Columns: %s\n", strings.Join(d.Headers, ", "))
	cmd.Printf("  Rows:    %d\n\n", d.RowCount)

	n := len(d.Data)
	if showLimit > 0 && showLimit < n {
		n = showLimit
	}
	for i, row := range d.Data[:n] {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = binding.Stringify(v)
		}
		cmd.Printf("  %4d  %s\n", i, strings.Join(cells, " | "))
	}
	if n < len(d.Data) {
		cmd.Printf("  ... %d more rows\n", len(d.Data)-n)
	}
	return nil
}

func runImportDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	if err := st.DeleteDataset(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	cmd.Printf("Deleted dataset %s\n", args[0])
	return nil
}
