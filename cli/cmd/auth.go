package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nevc-media/vidstream/cli/internal/client"
	"github.com/nevc-media/vidstream/cli/internal/config"
	"github.com/nevc-media/vidstream/cli/pkg/output"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Register, log in and manage the stored session",
}

var authRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		resp, err := anonymousClient(cmd).Register(cmd.Context(), name, email, password)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}
		if err := saveSession(cmd, resp); err != nil {
			return err
		}
		output.Success("Registered %s as %s", resp.User.Email, resp.User.Role)
		return nil
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the catalog",
	Long:  "Authenticate and save the access token to the selected profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		resp, err := anonymousClient(cmd).Login(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if err := saveSession(cmd, resp); err != nil {
			return err
		}
		output.Success("Logged in as %s", email)
		output.Info("Profile '%s' saved to %s", profileName(cmd), cfg.Path())
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the stored token and forget it",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := profileName(cmd)
		p, err := cfg.GetProfile(name)
		if err != nil {
			return err
		}

		if err := client.New(apiURL(cmd), "").Logout(cmd.Context(), p.AccessToken); err != nil {
			output.Warn("Server-side revocation failed: %v", err)
		}
		if err := cfg.RemoveProfile(name); err != nil {
			return err
		}
		output.Success("Logged out from profile '%s'", name)
		return nil
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Display the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}
		me, err := c.Me(cmd.Context())
		if err != nil {
			return fmt.Errorf("token invalid or expired, run 'vidctl auth login': %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSON(me)
		}
		output.Info("Profile:      %s", profileName(cmd))
		output.Info("User ID:      %s", me.ID)
		output.Info("Email:        %s", me.Email)
		output.Info("Role:         %s", me.Role)
		output.Info("Capabilities: %s", strings.Join(me.Capabilities, ", "))
		output.Info("API URL:      %s", apiURL(cmd))
		return nil
	},
}

func saveSession(cmd *cobra.Command, resp *client.TokenResponse) error {
	p := &config.Profile{
		APIURL:      apiURL(cmd),
		AccessToken: resp.AccessToken,
		ExpiresAt:   resp.ExpiresAt,
	}
	if resp.User != nil {
		p.Email = resp.User.Email
	}
	if err := cfg.SaveProfile(profileName(cmd), p); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authRegisterCmd, authLoginCmd, authLogoutCmd, authWhoamiCmd)

	for _, c := range []*cobra.Command{authRegisterCmd, authLoginCmd} {
		c.Flags().StringP("email", "e", "", "Email address")
		c.Flags().StringP("password", "p", "", "Password (or $VIDCTL_PASSWORD)")
		_ = c.MarkFlagRequired("email")
	}
	authRegisterCmd.Flags().StringP("name", "n", "", "Display name")
	_ = authRegisterCmd.MarkFlagRequired("name")
}
