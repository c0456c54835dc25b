package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/nanopdf/internal/cli"
	"github.com/jackzampolin/nanopdf/internal/config"
	"github.com/jackzampolin/nanopdf/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage nanopdf configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() && !configForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", h.ConfigPath())
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", h.ConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		return cli.Output(redact(cm.Get()))
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		fmt.Println(h.ConfigPath())
		return nil
	},
}

// redact masks resolved API keys so `config show` is safe to paste around.
// The ${ENV_VAR} form is kept as-is since it reveals nothing.
func redact(cfg *config.Config) *config.Config {
	out := &config.Config{
		Backends: make(map[string]config.BackendCfg, len(cfg.Backends)),
		Defaults: cfg.Defaults,
	}
	for name, b := range cfg.Backends {
		if len(b.APIKey) > 0 && b.APIKey[0] != '$' {
			b.APIKey = "****"
		}
		out.Backends[name] = b
	}
	return out
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
