// Package main provides ifcinspect, which replays a saved validation response
// through the engine without a backend or a browser.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agenthands/ifcsync/internal/config"
	"github.com/agenthands/ifcsync/internal/core"
	"github.com/agenthands/ifcsync/internal/core/highlight"
	"github.com/agenthands/ifcsync/internal/core/ingest"
	"github.com/agenthands/ifcsync/internal/core/model"
	"github.com/agenthands/ifcsync/internal/logger"
	"github.com/agenthands/ifcsync/internal/scene"
	"github.com/agenthands/ifcsync/internal/view/graphview"
	"github.com/agenthands/ifcsync/internal/view/viewer3d"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	upAxis     string
	assetDir   string
	outputJSON bool
	pick       []float64
	verbose    bool
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "ifcinspect <response.json>",
		Short: "Inspect a saved validation response",
		Long: `Load a backend validation response into a headless engine and report
what the 3D view would show: ingested elements, conflicts, highlight state.

Examples:
  ifcinspect resposta.json
  ifcinspect resposta.json --up-axis z --json
  ifcinspect resposta.json --pick 0,0
  ifcinspect resposta.json --assets ./static   # resolves model_path locally
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			return inspect(cmd.Context(), data, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "TOML config for palette and viewer settings")
	cmd.Flags().StringVar(&opts.upAxis, "up-axis", "", "Override viewer.up_axis (y or z)")
	cmd.Flags().StringVar(&opts.assetDir, "assets", "", "Directory model_path is read from (overrides viewer.asset_dir)")
	cmd.Flags().BoolVar(&opts.outputJSON, "json", false, "Output the engine snapshot as JSON")
	cmd.Flags().Float64SliceVar(&opts.pick, "pick", nil, "Pick at normalised device coordinates x,y")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine activity to stderr")
	return cmd
}

// emptyGraph stands in for the ontology backend.
type emptyGraph struct{}

func (emptyGraph) GraphByObject(context.Context, string) (*model.GraphData, error) {
	return &model.GraphData{}, nil
}
func (emptyGraph) FullGraph(context.Context) (*model.GraphData, error) {
	return &model.GraphData{}, nil
}
func (emptyGraph) ExpandNode(context.Context, string) (*model.GraphData, error) {
	return &model.GraphData{}, nil
}
func (emptyGraph) OntologySummary(context.Context) (*model.OntologySummary, error) {
	return &model.OntologySummary{}, nil
}

func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.upAxis != "" {
		cfg.Viewer.UpAxis = opts.upAxis
	}
	return cfg, cfg.Validate()
}

func inspect(ctx context.Context, data []byte, opts options, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	resp, err := model.DecodeValidationResponse(data)
	if err != nil {
		return err
	}

	lg := logger.Nop()
	if opts.verbose {
		if lg, err = logger.New("dev", "debug"); err != nil {
			return err
		}
		defer lg.Sync()
	}

	colors := cfg.Viewer.Colors
	palette := scene.NewPalette(colors.Default, colors.Wall, colors.WallOpacity, colors.Conflict, colors.Picked, cfg.Viewer.WallTypes)
	if opts.assetDir != "" {
		cfg.Viewer.AssetDir = opts.assetDir
	}
	loader := ingest.NewGLTFLoader(cfg.Viewer.AssetDir, nil, lg)

	engine := core.NewEngine(core.Deps{
		Graph:     emptyGraph{},
		Ingestor:  ingest.NewIngestor(palette, cfg.Viewer.UpAxis, loader, lg, nil),
		Machine:   highlight.NewMachine(palette),
		Viewer:    viewer3d.NewController(viewer3d.NewHeadless(cfg.Viewer.FieldOfView), cfg.Viewer.FramingMargin, lg),
		GraphView: graphview.NewController(graphview.NewHeadless(), graphview.DefaultFocus(), lg),
		Log:       lg,
	}, core.Options{})

	m, err := engine.Load(ctx, resp)
	if err != nil {
		return err
	}

	var picked *core.PickResult
	if len(opts.pick) > 0 {
		if len(opts.pick) != 2 {
			return fmt.Errorf("--pick takes exactly two values, got %d", len(opts.pick))
		}
		res := engine.PickAt(opts.pick[0], opts.pick[1])
		picked = &res
	}

	snap := engine.Snapshot()
	if opts.outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(w, "Source: %s\n", m.Report.Source)
	fmt.Fprintf(w, "Elements: %d processed, %d skipped, %d unresolved (of %d)\n",
		m.Report.Processed, m.Report.Skipped, m.Report.Unresolved, m.Report.Total)
	fmt.Fprintf(w, "Results: %d ok, %d conflicts, %d warnings\n",
		len(m.Summary.Successes), len(m.Summary.Conflicts), len(m.Summary.Warnings))
	fmt.Fprintf(w, "State: %s\n", snap.State)
	if picked != nil {
		if picked.Hit {
			fmt.Fprintf(w, "Pick: %s\n", picked.ID)
		} else {
			fmt.Fprintln(w, "Pick: miss")
		}
	}

	if len(snap.Conflicts) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tIN SCENE\tMESSAGE")
		for _, r := range snap.Conflicts {
			_, inScene := m.Elements[r.ID]
			fmt.Fprintf(tw, "%s\t%t\t%s\n", r.ID, inScene, r.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
