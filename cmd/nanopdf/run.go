package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/nanopdf/internal/config"
	"github.com/jackzampolin/nanopdf/internal/pdf"
	"github.com/jackzampolin/nanopdf/internal/pipeline"
	"github.com/jackzampolin/nanopdf/internal/plan"
	"github.com/jackzampolin/nanopdf/internal/providers"
)

// runFlags are the knobs shared by the edit and add commands.
type runFlags struct {
	output     string
	styleRefs  string
	useContext bool
	resolution string
	noSearch   bool
	backend    string
	workers    int
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default: alongside the input)")
	cmd.Flags().StringVar(&f.styleRefs, "style-refs", "", "comma-separated page numbers to use as style references")
	cmd.Flags().BoolVar(&f.useContext, "use-context", false, "extract document text and pass it as generation context")
	cmd.Flags().StringVar(&f.resolution, "resolution", "", "output resolution: 1K, 2K or 4K (default from config)")
	cmd.Flags().BoolVar(&f.noSearch, "no-search", false, "disable web search grounding during generation")
	cmd.Flags().StringVar(&f.backend, "backend", "", "image backend to use (default from config)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "max concurrent generation tasks (default from config)")
}

// buildRequest assembles the pipeline request from parsed args and flags.
func (f *runFlags) buildRequest(input, outputPrefix string, pairs []plan.Pair, cfg *config.Config) (pipeline.Request, error) {
	res := f.resolution
	if res == "" {
		res = cfg.Defaults.Resolution
	}
	resolution, err := providers.ParseResolution(res)
	if err != nil {
		return pipeline.Request{}, err
	}

	var refs []int
	if f.styleRefs != "" {
		refs, err = plan.ParseRefs(f.styleRefs)
		if err != nil {
			return pipeline.Request{}, err
		}
	}

	output := f.output
	if output == "" {
		output = filepath.Join(filepath.Dir(input), outputPrefix+filepath.Base(input))
	}

	return pipeline.Request{
		Input:        input,
		Output:       output,
		Pairs:        pairs,
		StyleRefs:    refs,
		UseContext:   f.useContext,
		Resolution:   resolution,
		EnableSearch: !f.noSearch,
	}, nil
}

// buildRunner wires the config-driven collaborators behind a pipeline run.
func (f *runFlags) buildRunner() (*pipeline.Runner, *config.Config, error) {
	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	cfg := cm.Get()

	registry := providers.NewRegistryFromConfig(cfg.ToRegistryConfig())

	name := f.backend
	if name == "" {
		name = cfg.Defaults.Backend
	}
	backend, err := registry.Get(name)
	if err != nil {
		return nil, nil, fmt.Errorf("backend %q is not available: %w", name, err)
	}

	workers := f.workers
	if workers <= 0 {
		workers = cfg.Defaults.Workers
	}

	runner := &pipeline.Runner{
		Renderer: &pdf.Renderer{DPI: cfg.Defaults.RenderDPI},
		Mutator:  &pdf.Mutator{},
		Backend:  backend,
		Workers:  workers,
		Logger:   slog.Default(),
	}
	return runner, cfg, nil
}
