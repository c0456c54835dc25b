package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/nanopdf/internal/cli"
	"github.com/jackzampolin/nanopdf/internal/config"
	"github.com/jackzampolin/nanopdf/internal/home"
)

type doctorCheck struct {
	Name   string `json:"name" yaml:"name"`
	OK     bool   `json:"ok" yaml:"ok"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

type doctorReport struct {
	Healthy bool          `json:"healthy" yaml:"healthy"`
	Checks  []doctorCheck `json:"checks" yaml:"checks"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that nanopdf's external requirements are in place",
	Long: `Check for the poppler tools used for page rasterization and text
extraction, the home directory, and configured backend credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report := doctorReport{Healthy: true}
		add := func(name string, ok bool, detail string) {
			if !ok {
				report.Healthy = false
			}
			report.Checks = append(report.Checks, doctorCheck{Name: name, OK: ok, Detail: detail})
		}

		for _, tool := range []string{"pdftoppm", "pdftotext"} {
			if path, err := exec.LookPath(tool); err == nil {
				add(tool, true, path)
			} else {
				add(tool, false, "not found in PATH (install poppler-utils)")
			}
		}

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if h.Exists() {
			add("home directory", true, h.Path())
		} else {
			add("home directory", false, fmt.Sprintf("%s missing (run `nanopdf config init`)", h.Path()))
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			add("config", false, err.Error())
			return finishDoctor(report)
		}
		add("config", true, "")

		cfg := cm.Get()
		enabled := cfg.EnabledBackends()
		if len(enabled) == 0 {
			add("backends", false, "no enabled backends in config")
		}
		for name := range enabled {
			if cfg.ResolveAPIKey(name) != "" {
				add("backend "+name, true, "credentials present")
			} else {
				add("backend "+name, false, "API key resolves to empty")
			}
		}

		return finishDoctor(report)
	},
}

// finishDoctor renders the report and turns failing checks into a non-zero
// exit so doctor can gate scripts.
func finishDoctor(report doctorReport) error {
	if err := cli.Output(report); err != nil {
		return err
	}
	if !report.Healthy {
		failing := 0
		for _, c := range report.Checks {
			if !c.OK {
				failing++
			}
		}
		return fmt.Errorf("doctor found %d failing checks", failing)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
