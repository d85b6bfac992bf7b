package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haukened/rr-rpz/internal/dns/common/log"
	"github.com/haukened/rr-rpz/internal/dns/config"
)

// newRootCmd builds the command tree. Subcommands that need zones run through
// withApp, which loads config, configures logging and loads zones; withConfig
// stops after building the application.
func newRootCmd() *cobra.Command {
	var (
		configPath   string
		fromSnapshot bool
	)

	root := &cobra.Command{
		Use:   appName,
		Short: "Inspect and query response policy zones",
		Long: `rpzctl loads the configured response policy zones in priority order and
answers questions about them: which policy a query, name server or answer
would hit, what the zones contain, and which snapshots are stored.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (RPZ_* environment variables override it)")
	root.PersistentFlags().BoolVar(&fromSnapshot, "from-snapshot", false, "Load zones from the snapshot store instead of their files")

	var withApp appRunner = func(run appFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Load(fromSnapshot); err != nil {
				return fmt.Errorf("failed to load zones: %w", err)
			}
			return run(cmd, app, args)
		}
	}
	var withConfig appRunner = func(run appFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			return run(cmd, app, args)
		}
	}

	root.AddCommand(
		newLoadCmd(withApp),
		newDumpCmd(withApp),
		newQueryCmd(withApp),
		newNSCmd(withApp),
		newNSIPCmd(withApp),
		newAnswerCmd(withApp),
		newSnapshotCmd(withConfig),
	)
	return root
}

type appFunc func(cmd *cobra.Command, app *Application, args []string) error

// appRunner adapts an appFunc into a cobra RunE.
type appRunner func(run appFunc) func(*cobra.Command, []string) error

func bootstrap(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("logging configuration error: %w", err)
	}
	log.Debug(map[string]any{
		"version":    version,
		"env":        cfg.Env,
		"zones":      len(cfg.Zones),
		"cache_size": cfg.Cache.Size,
		"bloom":      cfg.Bloom.Enabled,
	}, "configuration loaded")

	return newApplication(cfg, log.GetLogger())
}
