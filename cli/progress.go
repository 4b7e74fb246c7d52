package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/store"
	"github.com/grovetools/ragsync/tui/theme"
)

// ProgressReporter prints one line per visible change of indexing state,
// for terminals where the full view is not wanted.
type ProgressReporter struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(out io.Writer) *ProgressReporter {
	return &ProgressReporter{out: out}
}

// Update prints the state if its rendered line differs from the last one.
func (p *ProgressReporter) Update(state store.State) {
	line := FormatProgress(state)

	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.out, line)
}

// FormatProgress renders the indexing state as a single line.
func FormatProgress(state store.State) string {
	run := state.Indexing
	p := run.Progress

	symbol := "[.]"
	switch run.Status {
	case models.RunRunning:
		symbol = "[~]"
	case models.RunComplete:
		symbol = "[*]"
	case models.RunStopped:
		symbol = "[-]"
	case models.RunErrored:
		symbol = "[x]"
	}

	line := fmt.Sprintf("%s %-8s %5.1f%%  files %d/%d  chunks %d", symbol, run.Status, p.Percentage, p.FilesProcessed, p.FilesTotal, p.ChunksTotal)
	if p.CurrentFile != "" {
		line += "  " + p.CurrentFile
	}
	if run.Error != "" {
		line += "  " + theme.DefaultTheme.Error.Render(run.Error)
	}
	if state.Connection != models.ConnectionConnected {
		line += "  (" + string(state.Connection) + ")"
	}
	return line
}
