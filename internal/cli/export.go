package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/export"
	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/policy"
	"github.com/diewo77/labdesk/internal/services"
)

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var (
		output string
		as     string
	)
	cmd := &cobra.Command{
		Use:       "export <lab|consultancy>",
		Short:     "Write all requests of a family to an Excel workbook",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(models.FamilyLab), string(models.FamilyConsultancy)},
		RunE: func(cmd *cobra.Command, args []string) error {
			family := models.Family(args[0])
			if as == "" {
				as = opts.cfg.App.AdminUsername
			}
			if output == "" {
				output = export.Filename(family, time.Now())
			}
			conn, err := opts.openDB()
			if err != nil {
				return err
			}
			actor, err := exportActor(conn, as)
			if err != nil {
				return err
			}
			requests := services.NewRequestService(conn, nil, nil, opts.log)
			data, err := buildWorkbook(cmd, requests, actor, family)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			opts.log.Info("export written", zap.String("family", string(family)), zap.String("file", output))
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default lab-requests-YYYYMMDD.xlsx)")
	cmd.Flags().StringVar(&as, "as", "", "staff username the export runs as (default ADMIN_USERNAME)")
	return cmd
}

func exportActor(conn *gorm.DB, username string) (policy.Actor, error) {
	if username == "" {
		return policy.Actor{}, errors.New("no account to export as: pass --as or set ADMIN_USERNAME")
	}
	var u models.User
	if err := conn.Where("username = ? AND is_active = ?", username, true).First(&u).Error; err != nil {
		return policy.Actor{}, fmt.Errorf("load %s: %w", username, err)
	}
	return policy.ActorFor(&u), nil
}

func buildWorkbook(cmd *cobra.Command, requests *services.RequestService, actor policy.Actor, family models.Family) ([]byte, error) {
	ctx := cmd.Context()
	switch family {
	case models.FamilyLab:
		rows, err := requests.ExportLab(ctx, actor)
		if err != nil {
			return nil, err
		}
		return export.LabWorkbook(rows)
	default:
		rows, err := requests.ExportConsultancy(ctx, actor)
		if err != nil {
			return nil, err
		}
		return export.ConsultancyWorkbook(rows)
	}
}
