package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/grovetools/ragsync/errors"
	"github.com/grovetools/ragsync/pkg/paths"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [component]",
		Short: "Print or follow the ragsync log files",
		Long: `Prints the most recent log file, or the one of a single component
(engine, channel, chat, session, store, api) when it is named.`,
		Example: `ragsync logs
ragsync logs channel -f
ragsync logs --tail 50`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			lines, _ := cmd.Flags().GetInt("tail")

			prefix := ""
			if len(args) == 1 {
				prefix = args[0] + "-"
			}
			path, err := latestLogFile(paths.LogDir(), prefix)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return tailFile(ctx.Done(), cmd.OutOrStdout(), path, lines, follow)
		},
	}
	cmd.Flags().BoolP("follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().IntP("tail", "n", 0, "Only print the last N lines (0 prints everything)")
	return cmd
}

// latestLogFile returns the most recently modified .log file in dir whose
// name starts with prefix.
func latestLogFile(dir, prefix string) (string, error) {
	if dir == "" {
		return "", errors.New(errors.ErrCodeConfigNotFound, "no log directory is configured")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeConfigNotFound, "could not read log directory").WithDetail("dir", dir)
	}

	var latest string
	var latestMod int64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".log") || !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); latest == "" || mod > latestMod {
			latest, latestMod = filepath.Join(dir, name), mod
		}
	}
	if latest == "" {
		return "", errors.New(errors.ErrCodeConfigNotFound, "no log files found").WithDetail("dir", dir)
	}
	return latest, nil
}

func tailFile(done <-chan struct{}, out io.Writer, path string, lines int, follow bool) error {
	if lines > 0 {
		if err := printLastLines(out, path, lines); err != nil {
			return err
		}
		if !follow {
			return nil
		}
	}

	cfg := tail.Config{
		Follow: follow,
		ReOpen: follow,
		Logger: tail.DiscardingLogger,
	}
	if lines > 0 {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}
	t, err := tail.TailFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer t.Cleanup()
	defer t.Stop()

	for {
		select {
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			fmt.Fprintln(out, line.Text)
		case <-done:
			return nil
		}
	}
}

func printLastLines(out io.Writer, path string, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	all := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(all) > n {
		all = all[len(all)-n:]
	}
	for _, l := range all {
		fmt.Fprintln(out, l)
	}
	return nil
}
