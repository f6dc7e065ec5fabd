package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diewo77/labdesk/internal/services"
)

type createUserOptions struct {
	Email     string
	Password  string
	Staff     bool
	Superuser bool
}

// NewCreateUserCommand creates the create-user command.
func NewCreateUserCommand(opts *RootOptions) *cobra.Command {
	cu := &createUserOptions{}
	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create an active account",
		Long: `Create an active account with a profile and a fresh client id.

The password comes from --password or the LABDESK_PASSWORD variable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := cu.Password
			if password == "" {
				password = os.Getenv("LABDESK_PASSWORD")
			}
			conn, err := opts.openDB()
			if err != nil {
				return err
			}
			accounts := services.NewAccountService(conn, nil, opts.log, nil)
			u, err := accounts.CreateUser(cmd.Context(), services.NewUser{
				Username:    args[0],
				Email:       cu.Email,
				Password:    password,
				IsStaff:     cu.Staff,
				IsSuperuser: cu.Superuser,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, client %s, staff=%t, superuser=%t)\n",
				u.Username, u.ID, u.Profile.ClientID, u.IsStaff, u.IsSuperuser)
			return nil
		},
	}
	cmd.Flags().StringVar(&cu.Email, "email", "", "email address")
	cmd.Flags().StringVarP(&cu.Password, "password", "p", "", "password")
	cmd.Flags().BoolVar(&cu.Staff, "staff", false, "grant staff access")
	cmd.Flags().BoolVar(&cu.Superuser, "superuser", false, "grant superuser access (implies staff)")
	return cmd
}
