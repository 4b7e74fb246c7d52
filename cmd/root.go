// Package cmd implements the ragsync command line.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grovetools/ragsync/cli"
	"github.com/grovetools/ragsync/config"
	"github.com/grovetools/ragsync/internal/engine"
)

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"ragsync",
		"Follow indexing progress and chat with an indexed workspace",
	)
	root.Long = `ragsync connects to a document indexing backend. It follows the live
indexing progress channel, streams chat answers with their sources, and
manages per-workspace chat sessions.`

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cli.ApplyVerbosity(cmd)
	}

	root.AddCommand(
		NewWatchCmd(),
		NewAskCmd(),
		NewIndexCmd(),
		NewSessionsCmd(),
		NewConfigCmd(),
		NewLogsCmd(),
		cli.NewVersionCommand("ragsync"),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func loadEngine(cmd *cobra.Command) (*engine.Engine, *config.Config, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	e, err := engine.New(cfg, engine.Options{})
	if err != nil {
		return nil, nil, err
	}
	return e, cfg, nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func workspaceFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("workspace", "w", "", "Workspace (bucket) to use instead of the configured one")
}

func workspaceOf(cmd *cobra.Command, e *engine.Engine) string {
	ws, _ := cmd.Flags().GetString("workspace")
	return e.Workspace(ws)
}
