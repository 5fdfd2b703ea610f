package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"baekon/internal/config"
	appLog "baekon/internal/log"
)

const version = "0.1.0-dev"

// app holds persistent flag values shared by all subcommands.
type app struct {
	configPath string
	verbose    bool
	at         string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	appLog.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "baekon",
		Short: "BÆKON planner core: calendar reference, date phrases, voice commands",
		Long: `baekon serves the planner API and exposes its building blocks on the
command line.

  baekon serve                      run the HTTP API and subscription refresher
  baekon resolve "next friday"      resolve a date phrase
  baekon match "schedule gym tomorrow at 7am"
  baekon calendar                   print today's calendar reference`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "baekon.yaml", "path to config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newResolveCmd(a),
		newMatchCmd(a),
		newCalendarCmd(a),
	)
	return root
}

// setup loads the config and configures logging. Only serve creates a
// missing config file; the other commands fall back to defaults.
func (a *app) setup(create bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if _, statErr := os.Stat(a.configPath); !create && errors.Is(statErr, fs.ErrNotExist) {
		cfg = config.DefaultConfig()
	} else {
		cfg, err = config.Load(a.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", a.configPath, err)
		}
	}

	level := appLog.ParseLevel(cfg.LogLevel)
	if a.verbose {
		level = appLog.LevelDebug
	}
	appLog.Configure(appLog.Options{Level: level, File: cfg.LogFile})
	return cfg, nil
}

// referenceTime is --at (RFC3339) or now, in the configured zone.
func (a *app) referenceTime(cfg *config.Config) (time.Time, error) {
	loc, ok := cfg.Location()
	if !ok {
		appLog.Warn("unknown timezone; using local", "timezone", cfg.Timezone)
	}
	if a.at == "" {
		return time.Now().In(loc), nil
	}
	t, err := time.Parse(time.RFC3339, a.at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: want RFC3339", a.at)
	}
	return t.In(loc), nil
}
