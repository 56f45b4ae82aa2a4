package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sternrassler/catalog-mirror/internal/config"
	"github.com/Sternrassler/catalog-mirror/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries state shared by the subcommands.
type app struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "catalog-mirror",
		Short: "Mirror a mod catalog into a local database",
		Long: `catalog-mirror walks the games, categories, mods and files of a mod
catalog API and keeps a local SQLite copy up to date. Responses are cached so
interrupted runs resume cheaply, and media and release files can be mirrored
into a content-addressed bucket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{File: a.cfgFile, Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging())
			a.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is ./config.yaml or ./config/config.yaml)")
	addConfigFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newSyncCmd(a),
		newScheduleCmd(a),
		newStatsCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// addConfigFlags declares one flag per entry of config.FlagKeys. Defaults
// live in the config package; a flag only counts when it is set.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("output-dir", "", "directory for the database, bucket and lock file")
	fs.Bool("dry-run", false, "sync into memory and keep nothing")

	fs.String("api-url", "", "catalog API base URL")
	fs.String("api-key", "", "catalog API key")
	fs.String("api-key-file", "", "file holding the API key")
	fs.Duration("wait", 0, "minimum spacing between requests")
	fs.Int("retry-limit", 0, "retries per request before giving up")

	fs.String("cache", "", "cache mode: none, default, all or only")
	fs.String("store", "", "store mode: none, default, all or last")
	fs.String("cache-backend", "", "cache backend: sqlite or redis")
	fs.Duration("max-age", 0, "maximum age of cached listing pages")

	fs.String("database", "", "entity database path")
	fs.String("bucket", "", "bucket database path")
	fs.String("bucket-mode", "", "bucket blob storage: inline or filesystem")

	fs.StringSlice("games", nil, "game IDs to mirror (empty means all)")
	fs.StringSlice("categories", nil, "category IDs to mirror (empty means all)")
	fs.Bool("full", false, "revisit every mod and bypass the listing cache")
	fs.Int("page-size", 0, "items per listing page")
	fs.Int("stale-pages", 0, "stop a mod listing after this many unchanged pages (0 disables)")
	fs.Int("commit-every", 0, "units of work per database commit")

	fs.Bool("descriptions", false, "fetch mod descriptions")
	fs.Bool("changelogs", false, "fetch file changelogs")
	fs.Bool("game-versions", false, "fetch game versions")
	fs.Bool("download-media", false, "mirror mod logos and screenshots")
	fs.Bool("download-files", false, "mirror release files")
	fs.Bool("download-all", false, "enable every optional fetch and download")

	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.Bool("pretty", false, "human-readable console logs")

	fs.String("metrics-address", "", "serve /metrics and /health on this address")
	fs.String("schedule", "", "cron spec for the schedule command")
	fs.String("lock", "", "lock file path")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		// No configuration needed.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "catalog-mirror version %s\n", version)
		},
	}
}
