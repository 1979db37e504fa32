package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lvillar/pdfmerge/pageops"
)

var combineCmd = &cobra.Command{
	Use:   "combine [file.pdf...]",
	Short: "Concatenate PDFs into one document",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCombine,
}

var combineOut string

func init() {
	combineCmd.Flags().StringVarP(&combineOut, "out", "o", "", "output file (required)")
	_ = combineCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(combineCmd)
}

func runCombine(cmd *cobra.Command, args []string) error {
	if err := pageops.MergeFiles(combineOut, args...); err != nil {
		return fmt.Errorf("failed to combine: %w", err)
	}
	cmd.Printf("Combined %d files into %s\n", len(args), combineOut)
	return nil
}
