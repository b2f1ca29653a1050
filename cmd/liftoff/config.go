package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tfkr-ae/liftoff"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and update config.yaml",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store a single configuration key",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := liftoff.LoadConfig(configDir(cmd))
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg.Settings())
	if err != nil {
		return fmt.Errorf("encoding configuration : %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := liftoff.LoadConfig(configDir(cmd))
	if err != nil {
		return err
	}
	if err := cfg.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
	return nil
}
