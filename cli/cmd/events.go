package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nevc-media/vidstream/cli/pkg/output"
	"github.com/nevc-media/vidstream/common/messaging"
	natsclient "github.com/nevc-media/vidstream/common/messaging/nats"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow catalog events from NATS",
	Long: `Subscribe to the catalog's forwarded events and print them as they arrive.

Subjects:
  vidstream.assets.published|updated|deleted
  vidstream.audit.impressions|views

Press Ctrl+C to stop.`,
	Example: `  vidctl events
  vidctl events --subject 'vidstream.audit.>'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats-url")
		if natsURL == "" && cfg.Defaults != nil {
			natsURL = cfg.Defaults.NATSURL
		}
		subject, _ := cmd.Flags().GetString("subject")

		ncfg := natsclient.DefaultConfig()
		ncfg.URL = natsURL
		ncfg.Name = "vidctl-events"
		ncfg.MaxReconnects = 5
		nc, err := natsclient.NewClient(ncfg)
		if err != nil {
			return err
		}
		defer nc.Close()

		asJSON := jsonOutput(cmd)
		sub, err := nc.Subscribe(subject, func(_ context.Context, msg *messaging.Message) error {
			if asJSON {
				return output.JSON(map[string]any{
					"subject":  msg.Subject,
					"event_id": msg.Metadata[messaging.HeaderEventID],
					"received": msg.Timestamp,
					"data":     jsonRaw(msg.Data),
				})
			}
			output.Info("%s %s", msg.Timestamp.Format(time.TimeOnly), msg.Subject)
			fmt.Fprintf(output.Out, "  %s\n", msg.Data)
			return nil
		})
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()

		output.Success("Listening on %s at %s", subject, natsURL)
		<-cmd.Context().Done()
		return nil
	},
}

// jsonRaw embeds valid JSON as-is and anything else as a string.
func jsonRaw(b []byte) any {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	return string(b)
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().String("nats-url", "", "NATS server URL (default from config)")
	eventsCmd.Flags().String("subject", messaging.SubjectAll, "subject to subscribe to")
}
