package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nevc-media/vidstream/cli/internal/client"
	"github.com/nevc-media/vidstream/cli/internal/config"
	"github.com/nevc-media/vidstream/cli/pkg/output"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vidctl",
	Short: "vidstream catalog CLI",
	Long: `vidctl is the command-line interface for the vidstream video catalog.

Register and log in, publish and browse videos, stream them to disk,
inspect their audit trails, and seed a catalog with generated data.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Interrupts cancel the command context so
// long uploads, downloads and subscriptions stop cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		output.Error("%v", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.vidctl/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().String("api-url", "", "catalog API URL (default from profile or $"+config.EnvAPIURL+")")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		output.Warn("Could not load config: %v", err)
		cfg = config.Default()
	}
}

// profileName resolves --profile, falling back to the current profile and
// then to "default".
func profileName(cmd *cobra.Command) string {
	if name, _ := cmd.Flags().GetString("profile"); name != "" {
		return name
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func apiURL(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("api-url"); u != "" {
		return u
	}
	return cfg.APIURL(profileName(cmd))
}

func jsonOutput(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}

// anonymousClient talks to the API without credentials.
func anonymousClient(cmd *cobra.Command) *client.Client {
	return client.New(apiURL(cmd), "")
}

// sessionClient uses the stored token of the selected profile.
func sessionClient(cmd *cobra.Command) (*client.Client, error) {
	name := profileName(cmd)
	p, err := cfg.GetProfile(name)
	if err != nil || p.AccessToken == "" {
		return nil, fmt.Errorf("not logged in (profile %q), run 'vidctl auth login'", name)
	}
	return client.New(apiURL(cmd), p.AccessToken), nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("VIDCTL_PASSWORD")
	}
	if password == "" {
		return "", fmt.Errorf("password is required (--password or $VIDCTL_PASSWORD)")
	}
	return password, nil
}
