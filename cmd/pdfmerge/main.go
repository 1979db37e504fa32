// Command pdfmerge generates PDFs from markup templates and tabular data.
//
// # Installation
//
//	go install github.com/lvillar/pdfmerge/cmd/pdfmerge@latest
//
// # Usage
//
//	pdfmerge template add Invoice invoice.html
//	pdfmerge import add customers.csv
//	pdfmerge generate -t TEMPLATE_ID -i IMPORT_ID --rows 0-9 -o out/ --combine
//
// Settings are read from pdfmerge.yaml in the working directory or
// ~/.pdfmerge, and from PDFMERGE_* environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lvillar/pdfmerge/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfmerge: %v\n", err)
		os.Exit(1)
	}
}
