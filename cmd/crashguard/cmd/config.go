package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or show the crashguard configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .crashguard.yaml",
	Long: `Write the default configuration to .crashguard.yaml in the current
directory, or to ~/.config/crashguard/config.yaml with --user.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var (
	configInitForce bool
	configInitUser  bool
	configShowFmt   string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite existing configuration")
	configInitCmd.Flags().BoolVar(&configInitUser, "user", false, "Write the per-user configuration instead")
	configShowCmd.Flags().StringVarP(&configShowFmt, "format", "f", "yaml", "Output format: yaml | json")
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := ".crashguard.yaml"
	if configInitUser {
		userPath, err := config.UserConfigPath()
		if err != nil {
			return err
		}
		path = userPath
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	if err := config.WriteDefaultConfig(path, configInitForce); err != nil {
		if !configInitForce {
			return fmt.Errorf("%w, use --force to overwrite", err)
		}
		return err
	}
	if !quiet {
		fmt.Fprintf(out, "Configuration written to %s\n", pathColor.Sprint(path))
	}
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if configShowFmt != "yaml" && configShowFmt != "json" {
		return fmt.Errorf("unsupported format %q", configShowFmt)
	}
	return encode(out, configShowFmt, viper.AllSettings())
}
