package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/db"
	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/services"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	var autoOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := opts.openDB()
			if err != nil {
				return err
			}
			if err := db.Migrate(conn, opts.cfg.Database, !autoOnly); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			opts.log.Info("migrations completed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoOnly, "auto", false, "use gorm AutoMigrate even on postgres")
	return cmd
}

// NewSeedCommand creates the seed command. It also creates the bootstrap
// superuser when ADMIN_USERNAME and ADMIN_PASSWORD are set.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed reference rows and the bootstrap superuser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := opts.openDB()
			if err != nil {
				return err
			}
			if err := db.Seed(conn); err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			if err := seedAdmin(cmd, opts, conn); err != nil {
				return err
			}
			opts.log.Info("seeding completed")
			return nil
		},
	}
}

func seedAdmin(cmd *cobra.Command, opts *RootOptions, conn *gorm.DB) error {
	app := opts.cfg.App
	if app.AdminUsername == "" || app.AdminPassword == "" {
		return nil
	}
	var existing models.User
	err := conn.WithContext(cmd.Context()).Where("username = ?", app.AdminUsername).First(&existing).Error
	if err == nil {
		opts.log.Info("bootstrap superuser already exists", zap.String("username", app.AdminUsername))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up %s: %w", app.AdminUsername, err)
	}
	accounts := services.NewAccountService(conn, nil, opts.log, nil)
	u, err := accounts.CreateUser(cmd.Context(), services.NewUser{
		Username:    app.AdminUsername,
		Password:    app.AdminPassword,
		IsSuperuser: true,
	})
	if err != nil {
		return fmt.Errorf("create bootstrap superuser: %w", err)
	}
	opts.log.Info("bootstrap superuser created", zap.Uint("user_id", u.ID))
	return nil
}
