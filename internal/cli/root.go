// Package cli implements the pdfmerge command line.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lvillar/pdfmerge"
	"github.com/lvillar/pdfmerge/internal/app"
	"github.com/lvillar/pdfmerge/internal/config"
	"github.com/lvillar/pdfmerge/internal/logging"
	"github.com/lvillar/pdfmerge/store"
	"github.com/lvillar/pdfmerge/store/sqlite"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Application state shared by every command. Tests inject appEngine and
// appStore directly, in which case nothing is loaded from the environment.
var (
	cfgFile string

	appConfig *config.Config
	appLogger = zap.NewNop()
	appEngine *pdfmerge.Engine
	appStore  store.Store

	// cleanups run after the command, in reverse order.
	cleanups []func()
)

var rootCmd = &cobra.Command{
	Use:   "pdfmerge",
	Short: "Generate PDFs from templates and tabular data",
	Long: `pdfmerge fills {{field}} placeholders in markup templates with the rows
of an imported dataset and renders one PDF per row.

Templates and datasets are saved in a local database so batches can be
generated repeatedly. Every generated document is recorded as an artifact.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupApp,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./pdfmerge.yaml or ~/.pdfmerge/pdfmerge.yaml)")
	pf.String("data-dir", "", "directory holding the pdfmerge database")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.Int("concurrency", 0, "number of documents rendered at once")
	pf.String("backend", "", "raster backend: text or chrome")
	pf.String("page-mode", "", "tall documents: single or paginate")
	pf.Bool("strict", false, "fail rows whose images or barcodes cannot be drawn")
	pf.Bool("vector", false, "write vector PDFs instead of rasterized pages")
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx. Cancelling ctx stops
// batches between rows.
func ExecuteContext(ctx context.Context) error {
	defer teardownApp()
	return rootCmd.ExecuteContext(ctx)
}

func setupApp(cmd *cobra.Command, _ []string) error {
	if appEngine != nil {
		return nil
	}
	cfg, err := config.LoadWithFlags(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	engine, closeEngine, err := app.NewEngine(cfg, logger)
	if err != nil {
		return err
	}

	appConfig, appLogger, appEngine = cfg, logger, engine
	cleanups = append(cleanups, func() {
		closeEngine()
		_ = logger.Sync()
		appConfig, appLogger, appEngine = nil, zap.NewNop(), nil
	})
	return nil
}

func teardownApp() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

// openStore returns the application store, opening the SQLite database in
// the configured data directory on first use.
func openStore() (store.Store, error) {
	if appStore != nil {
		return appStore, nil
	}
	if appConfig == nil {
		return nil, errors.New("store not configured")
	}
	st, err := sqlite.Open(appConfig.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening database in %s: %w", appConfig.DataDir, err)
	}
	appStore = st
	cleanups = append(cleanups, func() {
		if err := st.Close(); err != nil {
			appLogger.Warn("closing database", zap.Error(err))
		}
		appStore = nil
	})
	return st, nil
}
