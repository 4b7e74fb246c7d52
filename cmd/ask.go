package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/ragsync/cli"
	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/store"
	"github.com/grovetools/ragsync/tui/theme"
)

// NewAskCmd creates the `ask` command.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask a question and stream the answer",
		Long: `Submits the query in the newest session of the workspace (a session is
created when none exists) and prints the answer as it streams, followed by
the sources it cites.`,
		Example: `ragsync ask "what changed in the release?"
ragsync ask -w handbook --no-sources "who approves expenses?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
	workspaceFlag(cmd)
	cmd.Flags().Bool("no-sources", false, "Do not print the cited sources")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	e, _, err := loadEngine(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st := e.Store()
	changes := st.Subscribe()
	defer st.Unsubscribe(changes)

	stream, err := e.Ask(ctx, workspaceOf(cmd, e), strings.Join(args, " "))
	if err != nil {
		return err
	}

	jsonOut := cli.GetOptions(cmd).JSONOutput
	out := cmd.OutOrStdout()
	printer := &answerPrinter{out: out, handle: stream.Handle(), quiet: jsonOut}

	for done := false; !done; {
		select {
		case change := <-changes:
			printer.update(change.State)
		case <-stream.Done():
			done = true
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	final := st.Snapshot()
	printer.started = true
	printer.update(final)
	answer, ok := lastAssistant(final)

	if jsonOut {
		if ok {
			return printJSON(out, answer)
		}
		return stream.Err()
	}
	if printer.printed > 0 {
		fmt.Fprintln(out)
	}
	if err := stream.Err(); err != nil {
		return err
	}

	noSources, _ := cmd.Flags().GetBool("no-sources")
	if ok && !noSources {
		printSources(out, answer.Sources)
	}
	return nil
}

// answerPrinter writes the growing answer of one stream incrementally.
type answerPrinter struct {
	out     io.Writer
	handle  models.StreamHandle
	quiet   bool
	started bool
	printed int
}

func (p *answerPrinter) update(state store.State) {
	if state.ActiveStream == p.handle && state.Streaming {
		p.started = true
	}
	if !p.started || p.quiet {
		return
	}
	msg, ok := lastAssistant(state)
	if !ok || len(msg.Content) <= p.printed {
		return
	}
	fmt.Fprint(p.out, msg.Content[p.printed:])
	p.printed = len(msg.Content)
}

func lastAssistant(state store.State) (models.ChatMessage, bool) {
	if len(state.Messages) == 0 {
		return models.ChatMessage{}, false
	}
	msg := state.Messages[len(state.Messages)-1]
	if msg.Role != models.RoleAssistant {
		return models.ChatMessage{}, false
	}
	return msg, true
}

func printSources(w io.Writer, sources []models.SourceRef) {
	if len(sources) == 0 {
		return
	}
	t := theme.DefaultTheme
	fmt.Fprintln(w)
	fmt.Fprintln(w, t.Header.Render("Sources"))
	for i, s := range sources {
		score := fmt.Sprintf("%.3f", s.SimilarityScore)
		if s.RerankScore != nil {
			score += fmt.Sprintf(", rerank %.3f", *s.RerankScore)
		}
		fmt.Fprintf(w, " %d. %s %s\n", i+1, s.Filename, t.Muted.Render(fmt.Sprintf("(%s, %s)", s.Kind, score)))
	}
}
