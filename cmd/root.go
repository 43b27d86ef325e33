package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MikeWKI/WKI-WIP/internal/config"
	"github.com/MikeWKI/WKI-WIP/internal/logging"
)

var (
	cfgFile string
	envFile string
	apiURL  string
	dbURI   string
	dbName  string
	planDir string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
	runID  string
)

var rootCmd = &cobra.Command{
	Use:   "wip",
	Short: "Operations toolkit for the WKI work-in-progress tracker",
	Long: `wip imports spreadsheet data into the work-order API, finds and removes
duplicate orders, archives completed orders into monthly buckets, and
inspects the backing MongoDB database.

Detection commands write plan files (for example duplicate_orders.json);
the matching removal or archive command reads them back, asks for
confirmation, and only then changes anything.`,
	SilenceUsage:      true,
	PersistentPreRunE: initRun,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the CLI. An interrupt cancels the run context, which stops
// dispatching further records.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/wip/config.yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&apiURL, "api-url", "", "work-order API base URL (overrides config and "+config.EnvAPIURL+")")
	flags.StringVarP(&dbURI, "db-uri", "u", "", "MongoDB connection URI (overrides config and "+config.EnvDBURI+")")
	flags.StringVarP(&dbName, "database", "d", "", "database name (overrides config and "+config.EnvDBName+")")
	flags.StringVar(&planDir, "plan-dir", ".", "directory holding plan files")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every request")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(duplicatesCmd)
	rootCmd.AddCommand(completedCmd)
	rootCmd.AddCommand(archivesCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(tuiCmd)
}

// initRun resolves configuration and builds the logger. Layers, lowest
// first: defaults, config file, dotenv and environment, flags.
func initRun(cmd *cobra.Command, args []string) error {
	var err error
	logger, err = logging.New(verbose)
	if err != nil {
		return err
	}

	if err := config.LoadDotEnv(envFile); err != nil {
		logger.Warn("ignoring dotenv file", zap.Error(err))
	}

	path, explicit := cfgFile, cfgFile != ""
	if !explicit {
		path = config.DefaultPath()
	}
	cfg, err = config.Load(path, explicit)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = apiURL
	}
	if flags.Changed("db-uri") {
		cfg.DBURI = dbURI
	}
	if flags.Changed("database") {
		cfg.DBName = dbName
	}

	runID = uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))
	logger.Debug("configuration resolved", zap.String("api_url", cfg.APIURL), zap.String("database", cfg.DBName))
	return nil
}
