package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nevc-media/vidstream/cli/internal/client"
	"github.com/nevc-media/vidstream/cli/pkg/output"
)

var videosCmd = &cobra.Command{
	Use:     "videos",
	Aliases: []string{"video", "v"},
	Short:   "Browse and manage the video catalog",
}

var videosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every active video",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}
		videos, err := c.ListVideos(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list videos: %w", err)
		}
		return renderSummaries(cmd, videos)
	},
}

var videosGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show the details of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}
		v, err := c.GetVideo(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to get video %d: %w", id, err)
		}
		return renderVideo(cmd, v)
	},
}

var videosPublishCmd = &cobra.Command{
	Use:   "publish --file <path>",
	Short: "Upload a media file with its metadata",
	Long: `Upload a media file with its metadata.

Metadata comes from --metadata (a JSON file) and is then overridden by any
individual flag, so a template file can be reused across uploads.`,
	Example: `  vidctl videos publish --file heat.mp4 --title Heat --director "Michael Mann" \
      --actor "Al Pacino" --cast "Robert De Niro" --genre crime --year 1995 --running-time 170`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		draft, err := draftFromFlags(cmd)
		if err != nil {
			return err
		}
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		v, err := c.WithoutTimeout().Publish(cmd.Context(), path, f, draft)
		if err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}
		if jsonOutput(cmd) {
			return output.JSON(v)
		}
		output.Success("Published %q as video %d (%d bytes)", v.Title, v.ID, v.FileSizeBytes)
		return nil
	},
}

var videosUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace the metadata of a video",
	Long: `Replace the metadata of a video.

The update is a full replacement: the current metadata is fetched, the
given flags are applied on top, and the result is sent back.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}
		current, err := c.GetVideo(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to get video %d: %w", id, err)
		}

		draft := draftOf(current)
		applyDraftFlags(cmd, &draft)
		v, err := c.UpdateVideo(cmd.Context(), id, draft)
		if err != nil {
			return fmt.Errorf("update failed: %w", err)
		}
		if jsonOutput(cmd) {
			return output.JSON(v)
		}
		output.Success("Updated video %d", v.ID)
		return nil
	},
}

var videosDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a video from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}
		if err := c.DeleteVideo(cmd.Context(), id); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		output.Success("Deleted video %d", id)
		return nil
	},
}

var videosSearchCmd = &cobra.Command{
	Use:   "search <title|director|mainActor|genre|runningTime> <value>",
	Short: "Search active videos by a single field",
	Example: `  vidctl videos search director "Christopher Nolan"
  vidctl videos search runningTime 150 --comparator GREATER_OR_EQUAL`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"title", "director", "mainActor", "genre", "runningTime"},
	RunE: func(cmd *cobra.Command, args []string) error {
		field, err := parseSearchField(args[0])
		if err != nil {
			return err
		}
		comparator, _ := cmd.Flags().GetString("comparator")
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}
		hits, err := c.Search(cmd.Context(), field, args[1], comparator)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return renderSummaries(cmd, hits)
	},
}

var videosPlayCmd = &cobra.Command{
	Use:   "play <id>",
	Short: "Stream a video to a file or stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		out, _ := cmd.Flags().GetString("out")
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		n, err := c.WithoutTimeout().Play(cmd.Context(), id, w)
		if err != nil {
			return fmt.Errorf("play failed: %w", err)
		}
		if out != "" && out != "-" {
			output.Success("Wrote %d bytes to %s", n, out)
		}
		return nil
	},
}

var videosImpressionsCmd = &cobra.Command{
	Use:   "impressions <id>",
	Short: "List metadata reads of a video",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTrail((*client.Client).Impressions),
}

var videosViewsCmd = &cobra.Command{
	Use:   "views <id>",
	Short: "List playbacks of a video",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTrail((*client.Client).Views),
}

func runAuditTrail(fetch func(*client.Client, context.Context, int64) ([]client.AuditEvent, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := sessionClient(cmd)
		if err != nil {
			return err
		}
		events, err := fetch(c, cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to fetch audit trail: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSON(events)
		}
		tbl := output.NewTable("TIME", "USER", "SOURCE IP", "USER AGENT")
		for _, e := range events {
			tbl.AddRow(e.OccurredAt.Format("2006-01-02 15:04:05"), e.UserID, e.SourceIP, e.UserAgent)
		}
		tbl.Render()
		return nil
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid video id %q", s)
	}
	return id, nil
}

func parseSearchField(s string) (client.SearchField, error) {
	for _, f := range []client.SearchField{
		client.SearchTitle, client.SearchDirector, client.SearchMainActor,
		client.SearchGenre, client.SearchRunningTime,
	} {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown search field %q", s)
}

// draftFromFlags builds publish metadata from --metadata and the
// individual flags.
func draftFromFlags(cmd *cobra.Command) (client.Draft, error) {
	var d client.Draft
	if path, _ := cmd.Flags().GetString("metadata"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return d, err
		}
		if err := json.Unmarshal(data, &d); err != nil {
			return d, fmt.Errorf("invalid metadata file %s: %w", path, err)
		}
	}
	applyDraftFlags(cmd, &d)
	return d, nil
}

// applyDraftFlags overwrites the fields of d whose flags were set.
func applyDraftFlags(cmd *cobra.Command, d *client.Draft) {
	flags := cmd.Flags()
	if flags.Changed("title") {
		d.Title, _ = flags.GetString("title")
	}
	if flags.Changed("synopsis") {
		d.Synopsis, _ = flags.GetString("synopsis")
	}
	if flags.Changed("director") {
		d.DirectorName, _ = flags.GetString("director")
	}
	if flags.Changed("actor") {
		d.MainActor, _ = flags.GetString("actor")
	}
	if flags.Changed("cast") {
		names, _ := flags.GetStringSlice("cast")
		d.Cast = d.Cast[:0]
		for _, n := range names {
			d.Cast = append(d.Cast, client.Actor{FullName: n})
		}
	}
	if flags.Changed("genre") {
		genres, _ := flags.GetStringSlice("genre")
		d.Genres = d.Genres[:0]
		for _, g := range genres {
			d.Genres = append(d.Genres, strings.ToUpper(g))
		}
	}
	if flags.Changed("year") {
		d.YearOfRelease, _ = flags.GetInt("year")
	}
	if flags.Changed("running-time") {
		d.RunningTime, _ = flags.GetInt("running-time")
	}
}

func draftOf(v *client.Video) client.Draft {
	return client.Draft{
		ID:            v.ID,
		Title:         v.Title,
		Synopsis:      v.Synopsis,
		DirectorName:  v.DirectorName,
		MainActor:     v.MainActor,
		Cast:          v.Cast,
		Genres:        v.Genres,
		YearOfRelease: v.YearOfRelease,
		RunningTime:   v.RunningTime,
	}
}

func renderSummaries(cmd *cobra.Command, videos []client.Summary) error {
	if jsonOutput(cmd) {
		return output.JSON(videos)
	}
	if len(videos) == 0 {
		output.Info("No videos found")
		return nil
	}
	tbl := output.NewTable("ID", "TITLE", "DIRECTOR", "MAIN ACTOR", "YEAR", "MIN", "GENRES")
	for _, v := range videos {
		tbl.AddRow(strconv.FormatInt(v.ID, 10), v.Title, v.DirectorName, v.MainActor,
			year(v.YearOfRelease), strconv.Itoa(v.RunningTime), strings.Join(v.Genres, ","))
	}
	tbl.Render()
	return nil
}

func renderVideo(cmd *cobra.Command, v *client.Video) error {
	if jsonOutput(cmd) {
		return output.JSON(v)
	}
	cast := make([]string, len(v.Cast))
	for i, a := range v.Cast {
		cast[i] = a.FullName
	}
	output.Info("ID:           %d", v.ID)
	output.Info("Title:        %s", v.Title)
	output.Info("Director:     %s", v.DirectorName)
	output.Info("Main actor:   %s", v.MainActor)
	output.Info("Cast:         %s", strings.Join(cast, ", "))
	output.Info("Genres:       %s", strings.Join(v.Genres, ", "))
	output.Info("Year:         %s", year(v.YearOfRelease))
	output.Info("Running time: %d min", v.RunningTime)
	output.Info("File:         %s (%s, %d bytes)", v.FileName, v.FileExtension, v.FileSizeBytes)
	output.Info("Published:    %s by %s", v.PublishedAt.Format("2006-01-02 15:04"), v.PublishedBy)
	if v.LastUpdatedAt != nil {
		output.Info("Updated:      %s by %s", v.LastUpdatedAt.Format("2006-01-02 15:04"), v.LastUpdatedBy)
	}
	if v.Synopsis != "" {
		output.Info("\n%s", v.Synopsis)
	}
	return nil
}

func year(y int) string {
	if y == 0 {
		return "-"
	}
	return strconv.Itoa(y)
}

func init() {
	rootCmd.AddCommand(videosCmd)
	videosCmd.AddCommand(videosListCmd, videosGetCmd, videosPublishCmd, videosUpdateCmd,
		videosDeleteCmd, videosSearchCmd, videosPlayCmd, videosImpressionsCmd, videosViewsCmd)

	for _, c := range []*cobra.Command{videosPublishCmd, videosUpdateCmd} {
		f := c.Flags()
		f.String("title", "", "Title")
		f.String("synopsis", "", "Synopsis")
		f.String("director", "", "Director name")
		f.String("actor", "", "Main actor")
		f.StringSlice("cast", nil, "Cast members (repeatable or comma separated)")
		f.StringSlice("genre", nil, "Genres, e.g. drama,crime")
		f.Int("year", 0, "Year of release")
		f.Int("running-time", 0, "Running time in minutes")
	}
	videosPublishCmd.Flags().StringP("file", "f", "", "Media file to upload")
	videosPublishCmd.Flags().String("metadata", "", "JSON file with the video metadata")
	_ = videosPublishCmd.MarkFlagRequired("file")

	videosSearchCmd.Flags().String("comparator", "", "runningTime comparator: EQUAL, GREATER_OR_EQUAL, LESS_OR_EQUAL")
	videosPlayCmd.Flags().String("out", "", "Write to this file instead of stdout")
}
