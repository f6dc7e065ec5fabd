// Package cli implements the labdesk command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/config"
	"github.com/diewo77/labdesk/internal/db"
	"github.com/diewo77/labdesk/internal/logging"
)

// RootOptions holds global flags and what PersistentPreRunE loads from them.
type RootOptions struct {
	EnvFile  string
	LogLevel string

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand creates the root command for the labdesk CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "labdesk",
		Short: "LabDesk - lab test and consultancy requests",
		Long:  "Serve the LabDesk web app and run its maintenance tasks.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewCreateUserCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", o.EnvFile, err)
		}
	}
	o.cfg = config.Load()
	level := o.cfg.Log.Level
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	log, err := logging.New(level, o.cfg.Log.Format, "labdesk")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	o.log = log
	return nil
}

// openDB connects using the loaded configuration.
func (o *RootOptions) openDB() (*gorm.DB, error) {
	return db.Open(o.cfg.Database, o.log)
}
