package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nevc-media/vidstream/cli/pkg/output"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "User management commands",
	Long:  "List accounts and change their roles (requires ADMIN)",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}
		users, err := c.ListUsers(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSON(users)
		}
		tbl := output.NewTable("ID", "EMAIL", "NAME", "ROLE", "CREATED")
		for _, u := range users {
			tbl.AddRow(u.ID, u.Email, u.DisplayName, u.Role, u.CreatedAt.Format("2006-01-02"))
		}
		tbl.Render()
		return nil
	},
}

var usersSetRoleCmd = &cobra.Command{
	Use:   "set-role <user-id> <ADMIN|CREATOR|VIEWER>",
	Short: "Change the role of a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}
		u, err := c.SetUserRole(cmd.Context(), args[0], strings.ToUpper(args[1]))
		if err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		output.Success("%s is now %s", u.Email, u.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd, usersSetRoleCmd)
}
