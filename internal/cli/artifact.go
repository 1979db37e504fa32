package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Manage generated documents",
}

var artifactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generated documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runArtifactList,
}

var artifactDeleteCmd = &cobra.Command{
	Use:   "delete [artifact-id]",
	Short: "Forget a generated document",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtifactDelete,
}

// removeFile also deletes the document from disk.
var removeFile bool

func init() {
	artifactDeleteCmd.Flags().BoolVar(&removeFile, "remove-file", false, "also delete the PDF file")

	artifactCmd.AddCommand(artifactListCmd)
	artifactCmd.AddCommand(artifactDeleteCmd)
	rootCmd.AddCommand(artifactCmd)
}

func runArtifactList(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	artifacts, err := st.ListArtifacts(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}
	if len(artifacts) == 0 {
		cmd.Println("No documents generated.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for _, a := range artifacts {
		cmd.Printf("  %s\n", a.ID)
		cmd.Printf("    Name:    %s\n", a.Name)
		cmd.Printf("    Path:    %s\n", a.FilePath)
		cmd.Printf("    Size:    %d bytes\n", a.Size)
		cmd.Printf("    Row:     %d\n", a.RowIndex)
		cmd.Printf("    Created: %s\n", a.CreatedAt.Local().Format(timeLayout))
		cmd.Println()
	}
	cmd.Printf("Total: %d documents\n", len(artifacts))
	return nil
}

func runArtifactDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := st.GetArtifact(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get artifact: %w", err)
	}
	if err := st.DeleteArtifact(ctx, a.ID); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	if removeFile && a.FilePath != "" {
		if err := os.Remove(a.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", a.FilePath, err)
		}
	}
	cmd.Printf("Deleted document %s\n", a.ID)
	return nil
}
