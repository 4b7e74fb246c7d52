package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/grovetools/ragsync/cli"
	"github.com/grovetools/ragsync/config"
	"github.com/grovetools/ragsync/internal/engine"
	"github.com/grovetools/ragsync/logging"
	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/store"
	"github.com/grovetools/ragsync/tui"
	"github.com/grovetools/ragsync/tui/keymap"
	"github.com/grovetools/ragsync/tui/progressview"
)

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow indexing progress",
		Long: `Connects to the progress channel and prints indexing progress as it
changes. The channel reconnects on its own after a drop; after the retry
budget is spent it stays down until you reconnect (press r in the TUI).`,
		Example: `# Interactive progress view
ragsync watch --tui

# Print progress until the current run ends
ragsync watch --until-done`,
		RunE: runWatch,
	}
	cmd.Flags().BoolP("tui", "i", false, "Launch the interactive progress view")
	cmd.Flags().Bool("until-done", false, "Exit when the run completes, stops or fails")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger("watch")
	e, cfg, err := loadEngine(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := e.Start(ctx); err != nil {
		logger.WithError(err).Warn("Could not read indexing status, waiting for the progress channel")
	}

	if len(cfg.Sources) > 0 {
		w, err := config.NewWatcher(cfg.Sources, config.DefaultDebounce, func(string) {
			reloadLogLevel(cmd)
		}, logging.NewLogger("config-watcher"))
		if err != nil {
			logger.WithError(err).Warn("Config watcher disabled")
		} else {
			go w.Start(ctx)
			defer w.Close()
		}
	}

	st := e.Store()
	changes := st.Subscribe()
	defer st.Unsubscribe(changes)

	useTUI, _ := cmd.Flags().GetBool("tui")
	if useTUI {
		tui.InitializeTUI()
		model := progressview.New(st.Snapshot(), changes, e, keymap.Load(cfg))
		_, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("progress view failed: %w", err)
		}
		return nil
	}

	untilDone, _ := cmd.Flags().GetBool("until-done")
	return followPlain(ctx, cmd, e, changes, untilDone)
}

func followPlain(ctx context.Context, cmd *cobra.Command, e *engine.Engine, changes <-chan store.Change, untilDone bool) error {
	jsonOut := cli.GetOptions(cmd).JSONOutput
	reporter := cli.NewProgressReporter(cmd.OutOrStdout())
	snap := e.Store().Snapshot()
	if !jsonOut {
		reporter.Update(snap)
	}
	// A terminal status left over from an earlier run does not end the watch.
	running := snap.Indexing.Status == models.RunRunning

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if jsonOut {
				if err := printJSON(cmd.OutOrStdout(), change); err != nil {
					return err
				}
			} else {
				reporter.Update(change.State)
			}
			status := change.State.Indexing.Status
			if status == models.RunRunning {
				running = true
			}
			if untilDone && running && status.Terminal() {
				return nil
			}
		}
	}
}

// reloadLogLevel re-applies logging.level after a config file changes.
func reloadLogLevel(cmd *cobra.Command) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		logging.NewLogger("watch").WithError(err).Warn("Ignoring invalid config change")
		return
	}
	var logCfg logging.Config
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil || logCfg.Level == "" {
		return
	}
	logging.SetLevel(logging.ParseLevel(logCfg.Level))
}
