package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/parlance"
	"github.com/aretw0/parlance/internal/presentation/tui"
	"github.com/aretw0/parlance/pkg/adapters/console"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/aretw0/parlance/pkg/observability"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Talk to a flow on the console",
	Long: `Runs one conversation with the terminal as the speech services.
Each input line is a recognised utterance and a blank line is no input.
Type /click (or, on a terminal, any line while the flow waits) to click.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("transcript")
		return runConsole(cmd, dir)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("flow", "f", "appointment", "Built-in flow name or YAML flow file")
	runCmd.Flags().Uint64("seed", 0, "Seed for reproducible randomized prompts")
	runCmd.Flags().Bool("nlu", false, "Request NLU interpretation on listens")
	runCmd.Flags().String("locale", "en-US", "Speech locale")
	runCmd.Flags().Duration("noinput-timeout", 0, "Treat a listen as no input after this long (0 waits forever)")
	runCmd.Flags().String("transcript", "", "Directory for JSON Lines transcripts")
	runCmd.Flags().String("sqlite", "", "SQLite transcript database")
}

func runConsole(cmd *cobra.Command, transcriptDir string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tui.PrintBanner(out)
	}

	con := console.New(cmd.InOrStdin(), out,
		console.WithRenderer(tui.NewRenderer()),
		console.WithLogger(logger),
	)

	hooks := []domain.LifecycleHooks{observability.LoggingHooks(logger)}
	sink, closeSink, err := openTranscript(transcriptDir)
	if err != nil {
		return err
	}
	defer closeSink()
	if sink != nil {
		rec := observability.NewTranscriptRecorder(sink, observability.WithRecorderLogger(logger))
		defer rec.Close()
		hooks = append(hooks, rec.Hooks())
	}

	eng, err := newEngine(grammar.New(),
		parlance.WithCollaborator(con),
		parlance.WithLifecycleHooks(domain.ChainHooks(hooks...)),
	)
	if err != nil {
		return err
	}
	d, err := eng.Spawn("")
	if err != nil {
		return err
	}
	defer d.Stop()
	logger.Info("Conversation started", "flow", eng.Name, "session_id", d.ID())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for snap := range d.Subscribe(runCtx) {
			if snap.Status == domain.StatusDone {
				cancel()
				return
			}
		}
	}()

	if err := d.Start(runCtx); err != nil {
		return err
	}
	if err := con.Run(runCtx, d); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
