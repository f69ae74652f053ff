package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/parlance/internal/adapters/file"
	"github.com/aretw0/parlance/pkg/adapters/redis"
	"github.com/aretw0/parlance/pkg/adapters/sqlite"
	"github.com/aretw0/parlance/pkg/ports"
	"github.com/spf13/cobra"
)

// openTranscript picks the configured transcript sink: SQLite, then Redis,
// then JSON Lines files under dir. It returns a nil sink when none is set.
func openTranscript(dir string) (ports.TranscriptSink, func(), error) {
	switch {
	case cfg.Transcript.SQLitePath != "":
		s, err := sqlite.Open(cfg.Transcript.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case cfg.Redis.URL != "":
		s, err := redis.NewFromURL(cfg.Redis.URL,
			redis.WithPrefix(cfg.Redis.Prefix+"transcript:"),
			redis.WithTTL(cfg.Transcript.RedisTTL),
		)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case dir != "":
		return file.NewTranscript(dir), func() {}, nil
	}
	return nil, func() {}, nil
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Inspect recorded conversations",
	Long:  `Reads the transcript sink configured for run and serve (SQLite, Redis or a JSON Lines directory).`,
}

var transcriptShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the turns of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, closeSink, err := transcriptSink(cmd)
		if err != nil {
			return err
		}
		defer closeSink()

		entries, err := sink.List(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no transcript for session '%s'", args[0])
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-6s %-8s %s\n",
				e.At.Format("15:04:05"), e.Speaker, e.Kind, e.Text)
		}
		return nil
	},
}

var transcriptRmCmd = &cobra.Command{
	Use:   "rm <session-id>",
	Short: "Delete the transcript of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, closeSink, err := transcriptSink(cmd)
		if err != nil {
			return err
		}
		defer closeSink()

		if err := sink.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Transcript '%s' deleted.\n", args[0])
		return nil
	},
}

func transcriptSink(cmd *cobra.Command) (ports.TranscriptSink, func(), error) {
	dir, _ := cmd.Flags().GetString("dir")
	sink, closeSink, err := openTranscript(dir)
	if err != nil {
		return nil, nil, err
	}
	if sink == nil {
		return nil, nil, fmt.Errorf("no transcript sink configured")
	}
	return sink, closeSink, nil
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
	transcriptCmd.AddCommand(transcriptShowCmd)
	transcriptCmd.AddCommand(transcriptRmCmd)

	transcriptCmd.PersistentFlags().String("dir", ".parlance/transcripts", "Directory of JSON Lines transcripts")
	transcriptCmd.PersistentFlags().String("sqlite", "", "SQLite transcript database")
	transcriptCmd.PersistentFlags().String("redis-url", "", "Redis URL of the transcript store")
	transcriptShowCmd.Flags().Bool("json", false, "Print entries as JSON")
}
