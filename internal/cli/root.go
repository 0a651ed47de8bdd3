package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"uitf-catalog/internal/assist"
	"uitf-catalog/internal/config"
	"uitf-catalog/internal/logging"
	"uitf-catalog/internal/pipeline"
	"uitf-catalog/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-07-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Store     store.DataStore
	Suggester *assist.Suggester
}

// Pipeline assembles a pipeline over the app's store and config.
func (a *App) Pipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(a.Config, a.Store, a.Logger)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dbPath := filepath.Join(cfg.Pipeline.DataDir, "uitfcat.db")
	dataStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", dbPath).Msg("SQLite store initialized")
	}

	if cfg.Assist.Enabled && cfg.Assist.APIKey != "" {
		app.Suggester = assist.New(assist.NewOpenAIClient(cfg.Assist.APIKey, cfg.Assist.Model))
		logger.Debug().Str("model", cfg.Assist.Model).Msg("Override suggester initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "uitfcat",
		Short: "UITF Catalog - Philippine investment fund catalog pipeline",
		Long: `UITF Catalog builds a reconciled catalog of Philippine unit investment
trust funds from two independent sources: a symbol-bearing listing search
and an attribute-rich bulk fund table. It also ingests per-fund price
history and derives period returns.

All remote fetches are cached; rerunning a stage never refetches a key
that already succeeded.

Use 'uitfcat help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/uitfcat)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newCollectCmd(app))
	rootCmd.AddCommand(newEnrichCmd(app))
	rootCmd.AddCommand(newReconcileCmd(app))
	rootCmd.AddCommand(newSeriesCmd(app))
	rootCmd.AddCommand(newReturnsCmd(app))
	rootCmd.AddCommand(newExportCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("UITF Catalog v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Pipeline Configuration")
	output.Printf("  Data Dir:       %s\n", cfg.Pipeline.DataDir)
	output.Printf("  Page Size:      %d\n", cfg.Pipeline.PageSize)
	output.Printf("  Lookback Years: %d\n", cfg.Pipeline.LookbackYears)
	output.Printf("  Fetch Timeout:  %s\n", cfg.Pipeline.FetchTimeout)
	output.Printf("  Fetch Workers:  %d\n", cfg.Pipeline.FetchWorkers)
	output.Printf("  Queries:        %v\n", cfg.Pipeline.Queries)
	output.Println()

	output.Bold("Cache Configuration")
	output.Printf("  Backend:        %s\n", cfg.Cache.Backend)
	output.Printf("  Dir:            %s\n", cfg.Cache.Dir)
	if cfg.Cache.Backend == "redis" {
		output.Printf("  Redis Addr:     %s\n", cfg.Cache.RedisAddr)
	}
	output.Println()

	output.Bold("Mappings")
	output.Printf("  Bank Websites:  %d\n", len(cfg.Mappings.BankWebsites))
	output.Printf("  Bank Names:     %d\n", len(cfg.Mappings.BankNames))
	output.Printf("  Overrides:      %d\n", len(cfg.Mappings.Overrides))
	output.Println()

	output.Bold("Assist")
	output.Printf("  Enabled:        %v\n", cfg.Assist.Enabled)
	output.Printf("  Model:          %s\n", cfg.Assist.Model)
}
