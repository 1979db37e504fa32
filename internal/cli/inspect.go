package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lvillar/pdfmerge/inspect"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file.pdf...]",
	Short: "Show page count, page size and images of PDFs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInspect,
}

var inspectJSON bool

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print JSON")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	results := make(map[string]*inspect.Info, len(args))
	for _, path := range args {
		info, err := inspect.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		results[path] = info
		if inspectJSON {
			continue
		}
		cmd.Printf("%s\n", path)
		cmd.Printf("  Pages:     %d\n", info.Pages)
		cmd.Printf("  Page size: %.2f x %.2f pt\n", info.PageWidth, info.PageHeight)
		cmd.Printf("  Images:    %d\n", info.Images)
		if info.Producer != "" {
			cmd.Printf("  Producer:  %s\n", info.Producer)
		}
	}
	if inspectJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
	}
	return nil
}
