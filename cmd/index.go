package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/ragsync/cli"
	"github.com/grovetools/ragsync/logging"
	"github.com/grovetools/ragsync/pkg/api"
	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/progress"
	"github.com/grovetools/ragsync/pkg/store"
)

// NewIndexCmd creates the `index` command group.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Start, stop and inspect indexing runs",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start indexing the selected workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			resp, err := e.Client().StartIndexing(cmd.Context())
			if err != nil {
				return err
			}
			return report(cmd, resp)
		},
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Ask the running indexing job to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			resp, err := e.Client().StopIndexing(cmd.Context())
			if err != nil {
				return err
			}
			return report(cmd, resp)
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the current or last indexing run",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			st, err := e.Client().IndexingStatus(cmd.Context())
			if err != nil {
				return err
			}
			run := progress.Hydrate(models.NewIndexingRun(), st.IsRunning, st.Progress)
			logging.NewLogger("index").WithFields(logrus.Fields{
				"running": st.IsRunning,
				"bucket":  st.CurrentBucket,
			}).Debug("Indexing status fetched")

			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), struct {
					Bucket string             `json:"current_bucket,omitempty"`
					Run    models.IndexingRun `json:"run"`
				}{st.CurrentBucket, run})
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if st.CurrentBucket != "" {
				pretty.Field("bucket", st.CurrentBucket)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatProgress(store.State{Indexing: run, Connection: models.ConnectionConnected}))
			if run.Message != "" {
				pretty.Field("message", run.Message)
			}
			return nil
		},
	}

	cmd.AddCommand(start, stop, status)
	return cmd
}

func report(cmd *cobra.Command, resp api.ControlResponse) error {
	if cli.GetOptions(cmd).JSONOutput {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success(resp.Message)
	return nil
}
