package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/devicelab-dev/virtual-pointer/pkg/clock"
	"github.com/devicelab-dev/virtual-pointer/pkg/config"
	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
	"github.com/devicelab-dev/virtual-pointer/pkg/executor"
	"github.com/devicelab-dev/virtual-pointer/pkg/flow"
	"github.com/devicelab-dev/virtual-pointer/pkg/logger"
	"github.com/devicelab-dev/virtual-pointer/pkg/report"
	"github.com/devicelab-dev/virtual-pointer/pkg/validator"
	"github.com/urfave/cli/v2"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run gesture flows against a scene",
	ArgsUsage: "<flow-file-or-folder>...",
	Description: `Run one or more gesture flow files and report the events they dispatch.

Each flow runs against the scene named in its config, or --scene when it
names none. Scene names without a directory are also looked up in
<home>/scenes.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  virtual-pointer run flow.yaml --scene board.scene.yaml
  virtual-pointer run flows/ -e TARGET=#card
  virtual-pointer run flows/ --include-tags smoke --simulate
  virtual-pointer run flows/ --output ./my-reports --flatten --html`,
	Flags: []cli.Flag{
		// Environment variables
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Flow variables (KEY=VALUE)",
		},

		// Tag filtering
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},

		&cli.StringFlag{
			Name:  "scene",
			Usage: "Scene for flows that do not name one (.yaml scene or .xml page source)",
		},

		// Output directory
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.BoolFlag{
			Name:  "html",
			Usage: "Also write report.html",
		},

		// Execution
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Run up to N flows at once (wall clock only)",
		},
		&cli.BoolFlag{
			Name:  "simulate",
			Usage: "Run gestures on a simulated clock instead of waiting in real time",
		},
		&cli.IntFlag{
			Name:  "step-timeout",
			Usage: "Per gesture timeout in ms (0 = none)",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining flows after the first failure",
		},
	},
	Action: runFlows,
}

// RunConfig holds the complete run configuration.
type RunConfig struct {
	// Paths
	FlowPaths []string
	Scene     string // Resolved fallback scene

	// Environment
	Env map[string]string

	// Filtering
	IncludeTags []string
	ExcludeTags []string

	// Output
	OutputDir string // Final resolved output directory
	HTML      bool

	// Execution
	Parallel       int
	Simulate       bool
	TickResolution time.Duration
	StepTimeout    time.Duration
	StopOnFail     bool
	Durations      flow.Durations
	AutoReset      *bool
	Touch          *bool
}

func runFlows(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one flow file or folder is required")
	}

	wcfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(c.String("output"), wcfg.OutputDir, c.Bool("flatten"))
	if err != nil {
		return err
	}

	cfg := buildRunConfig(c, wcfg, outputDir)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeRun(ctx, cfg, c.App.Writer)
}

// buildRunConfig merges flags over the workspace config. Flags win when set.
func buildRunConfig(c *cli.Context, wcfg *config.Config, outputDir string) *RunConfig {
	cfg := &RunConfig{
		FlowPaths:      c.Args().Slice(),
		Scene:          wcfg.Scene,
		Env:            make(map[string]string),
		IncludeTags:    wcfg.IncludeTags,
		ExcludeTags:    wcfg.ExcludeTags,
		OutputDir:      outputDir,
		HTML:           c.Bool("html"),
		Parallel:       wcfg.Parallelism,
		Simulate:       wcfg.Simulate,
		TickResolution: wcfg.TickResolutionDuration(),
		StepTimeout:    wcfg.StepTimeoutDuration(),
		StopOnFail:     c.Bool("stop-on-fail"),
		Durations: flow.Durations{
			Press:     wcfg.Durations.Press,
			DoubleTap: wcfg.Durations.DoubleTap,
			Flick:     wcfg.Durations.Flick,
		},
		AutoReset: wcfg.AutoReset,
		Touch:     wcfg.Touch,
	}

	// CLI env overrides workspace config env
	for k, v := range wcfg.Env {
		cfg.Env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		cfg.Env[k] = v
	}

	if c.IsSet("scene") {
		cfg.Scene = c.String("scene")
	}
	cfg.Scene = resolveScene(cfg.Scene)
	if c.IsSet("include-tags") {
		cfg.IncludeTags = c.StringSlice("include-tags")
	}
	if c.IsSet("exclude-tags") {
		cfg.ExcludeTags = c.StringSlice("exclude-tags")
	}
	if c.IsSet("parallel") {
		cfg.Parallel = c.Int("parallel")
	}
	if c.IsSet("simulate") {
		cfg.Simulate = c.Bool("simulate")
	}
	if c.IsSet("step-timeout") {
		cfg.StepTimeout = time.Duration(c.Int("step-timeout")) * time.Millisecond
	}
	return cfg
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: <fallback>/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output, fallback string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = fallback
	}
	if baseDir == "" {
		baseDir = config.DefaultConfig.OutputDir
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

// resolveScene returns name, or <home>/scenes/name when name is a bare file
// name that does not exist in the working directory.
func resolveScene(name string) string {
	if name == "" {
		return ""
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	if filepath.Base(name) == name {
		candidate := filepath.Join(config.GetScenesDir(), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}

func executeRun(ctx context.Context, cfg *RunConfig, w io.Writer) error {
	// 1. Create output directory
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	if !logConfigured {
		logPath := filepath.Join(cfg.OutputDir, "virtual-pointer.log")
		if err := logger.Init(logPath); err != nil {
			fmt.Fprintf(w, "Warning: Failed to initialize logger: %v\n", err)
		}
		_ = applyLogLevel()
		defer logger.Close()
	}

	logger.Info("=== Run started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Scene: %s, simulate: %v", cfg.Scene, cfg.Simulate)

	// 3. Validate and parse flows
	flows, err := validateAndParseFlows(cfg, w)
	if err != nil {
		logger.Error("Flow validation failed: %v", err)
		return err
	}
	logger.Info("Validated %d flow(s)", len(flows))
	applyEnv(flows, cfg.Env)

	// 4. Execute flows
	p := progress{w: w}
	runnerCfg := executor.RunnerConfig{
		Durations:      cfg.Durations,
		AutoReset:      cfg.AutoReset,
		Touch:          cfg.Touch,
		StepTimeout:    cfg.StepTimeout,
		Parallelism:    cfg.Parallel,
		StopOnFail:     cfg.StopOnFail,
		OnFlowStart:    p.onFlowStart,
		OnStepComplete: p.onStepComplete,
		OnFlowEnd:      p.onFlowEnd,
	}
	if cfg.Simulate {
		fake := clock.NewFake(time.Now())
		fake.SetResolution(cfg.TickResolution)
		runnerCfg.Clock = fake
	}

	start := time.Now()
	result := executor.New(runnerCfg).RunAll(ctx, flows, sceneLoader(cfg.Scene))
	end := time.Now()
	logger.Info("Run completed: %d passed, %d failed, %d skipped",
		result.PassedFlows, result.FailedFlows, result.SkippedFlows)

	// 5. Write reports
	jsonPath, err := report.Write(cfg.OutputDir, report.Build(result.Flows, start, end))
	if err != nil {
		logger.Error("Failed to write report: %v", err)
		return err
	}

	printUnifiedOutput(w, cfg.OutputDir, result)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Reports:")
	if cfg.HTML {
		htmlPath, err := report.GenerateHTML(cfg.OutputDir, report.HTMLConfig{})
		if err != nil {
			fmt.Fprintf(w, "  %s Warning: failed to generate HTML report: %v\n", paint(warnStyle, "⚠"), err)
		} else {
			fmt.Fprintf(w, "    HTML:   %s\n", htmlPath)
		}
	}
	fmt.Fprintf(w, "    JSON:   %s\n", jsonPath)

	// Exit with code 1 if any flows failed (summary already printed)
	if result.Status != core.StatusPassed {
		return cli.Exit("", 1)
	}
	return nil
}

// validateAndParseFlows validates and parses all flow files.
func validateAndParseFlows(cfg *RunConfig, w io.Writer) ([]flow.Flow, error) {
	files, errs := validatePaths(cfg.FlowPaths, validator.New(cfg.IncludeTags, cfg.ExcludeTags, validator.WithScene(cfg.Scene)))
	if len(errs) > 0 {
		printValidationErrors(w, errs)
		return nil, fmt.Errorf("validation failed with %d error(s)", len(errs))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no flows found")
	}

	fmt.Fprintf(w, "\n%s\n", paint(titleStyle, "Setup"))
	fmt.Fprintln(w, strings.Repeat("─", 40))
	fmt.Fprintf(w, "  %s Found %d flow(s)\n", paint(successStyle, "✓"), len(files))

	var flows []flow.Flow
	for _, path := range files {
		f, err := flow.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		flows = append(flows, *f)
	}
	return flows, nil
}

func validatePaths(paths []string, v *validator.Validator) ([]string, []error) {
	var files []string
	var errs []error
	for _, path := range paths {
		result := v.Validate(path)
		files = append(files, result.Files...)
		errs = append(errs, result.Errors...)
	}
	return files, errs
}

func printValidationErrors(w io.Writer, errs []error) {
	fmt.Fprintln(w, paint(errorStyle, "Validation errors:"))
	for _, err := range errs {
		fmt.Fprintf(w, "  - %v\n", err)
	}
}

// applyEnv sets run variables on every flow. They override the flow's own env.
func applyEnv(flows []flow.Flow, env map[string]string) {
	if len(env) == 0 {
		return
	}
	for i := range flows {
		merged := make(map[string]string, len(flows[i].Config.Env)+len(env))
		for k, v := range flows[i].Config.Env {
			merged[k] = v
		}
		for k, v := range env {
			merged[k] = v
		}
		flows[i].Config.Env = merged
	}
}

// sceneLoader loads each flow's scene, or fallback for flows naming none.
func sceneLoader(fallback string) executor.DocumentLoader {
	return func(f *flow.Flow) (*dom.Document, error) {
		path := f.ScenePath(fallback)
		if path == "" {
			return nil, core.ErrMissingRequired.WithMessage("no scene: set scene in the flow config or pass --scene")
		}
		return dom.LoadDocument(path)
	}
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
