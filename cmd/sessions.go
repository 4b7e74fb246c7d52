package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/grovetools/ragsync/cli"
	"github.com/grovetools/ragsync/logging"
	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/tui/theme"
)

// NewSessionsCmd creates the `sessions` command group.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "List, create and inspect chat sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the sessions of a workspace, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			sessions, err := e.Client().ListSessions(cmd.Context(), workspaceOf(cmd, e))
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), sessions)
			}
			if len(sessions) == 0 {
				logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).InfoPretty("No sessions yet")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", s.ID, s.DisplayName)
			}
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "new",
		Short: "Start a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			session, err := e.Sessions().NewChat(cmd.Context(), workspaceOf(cmd, e))
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), session)
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Created " + session.DisplayName)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show [id]",
		Short: "Print the messages of a session (the workspace history when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			ws := workspaceOf(cmd, e)

			var messages []models.ChatMessage
			if len(args) == 1 {
				messages, err = e.Client().LoadSession(cmd.Context(), ws, args[0])
			} else {
				messages, err = e.Client().History(cmd.Context(), ws)
			}
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), messages)
			}
			printTranscript(cmd.OutOrStdout(), messages)
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Clear the chat history of a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			session, err := e.Client().ClearHistory(cmd.Context(), workspaceOf(cmd, e))
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), session)
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("History cleared, now in " + session.DisplayName)
			return nil
		},
	}

	for _, c := range []*cobra.Command{list, create, show, clear} {
		workspaceFlag(c)
		cmd.AddCommand(c)
	}
	return cmd
}

func printTranscript(w io.Writer, messages []models.ChatMessage) {
	t := theme.DefaultTheme
	for i, m := range messages {
		if i > 0 {
			fmt.Fprintln(w)
		}
		label := string(m.Role)
		switch m.Role {
		case models.RoleUser:
			label = t.Header.Render("you")
		case models.RoleAssistant:
			label = t.Accent.Render("assistant")
		case models.RoleError:
			label = t.Error.Render("error")
		default:
			label = t.Muted.Render(label)
		}
		stamp := ""
		if !m.Timestamp.IsZero() {
			stamp = t.Muted.Render(m.Timestamp.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(w, "%s %s\n%s\n", label, stamp, m.Content)
		printSources(w, m.Sources)
	}
}
