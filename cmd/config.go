package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/ragsync/cli"
	"github.com/grovetools/ragsync/config"
	"github.com/grovetools/ragsync/logging"
)

// NewConfigCmd creates the `config` command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
		Long: `Configuration is merged from these layers, later ones winning:
1. Global config (~/.config/ragsync/ragsync.yml)
2. Project config (ragsync.yml, searched upward from the current directory)
3. Override files (ragsync.override.yml next to the project config)
4. RAGSYNC_SERVER_URL and RAGSYNC_WORKSPACE`,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and the files it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			out := cmd.OutOrStdout()
			for _, src := range cfg.Sources {
				fmt.Fprintf(out, "# Source: %s\n", src)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(out, string(data))
			return nil
		},
	}

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a configuration file against the schema and value rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if len(args) == 0 {
				cfg, err := cli.LoadConfig(cmd)
				if err != nil {
					return err
				}
				for _, src := range cfg.Sources {
					if err := validateFile(src); err != nil {
						return err
					}
				}
				pretty.Success(fmt.Sprintf("Configuration is valid (%d files)", len(cfg.Sources)))
				return nil
			}
			if err := validateFile(args[0]); err != nil {
				return err
			}
			if _, err := config.Load(args[0]); err != nil {
				return err
			}
			pretty.Success(args[0] + " is valid")
			return nil
		},
	}

	cmd.AddCommand(show, schema, validate)
	return cmd
}

func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	return config.ValidateDocument(data, format)
}
