package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sambabib/depconfusion/pkg/analyzer"
	"github.com/sambabib/depconfusion/pkg/config"
	"github.com/sambabib/depconfusion/pkg/errdefs"
	"github.com/sambabib/depconfusion/pkg/logger"
	"github.com/sambabib/depconfusion/pkg/manifest"
	"github.com/sambabib/depconfusion/pkg/output"
	"github.com/sambabib/depconfusion/pkg/registry"
)

// newConfirmer is replaced in tests.
var newConfirmer = func() output.Confirmer {
	return output.NewPromptConfirmer()
}

type analyzeOptions struct {
	url         string
	file        string
	output      string
	filter      string
	format      string
	configPath  string
	registry    string
	timeout     time.Duration
	concurrency int
	quiet       bool
	verbose     bool
	vulns       bool
	yes         bool
	noColor     bool
}

// newAnalyzeCmd creates the analyze subcommand
func newAnalyzeCmd() *cobra.Command {
	o := &analyzeOptions{}
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Classify package.json dependencies as updated, outdated or phantom",
		Long: `Reads a package.json from a URL (--url) or a local file (--file) and looks up every
dependency and devDependency in the registry. GitHub "blob" URLs are rewritten to
their raw content. With --vulns, outdated dependencies are checked against the
registry security audit endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, o)
		},
	}

	f := analyzeCmd.Flags()
	f.StringVarP(&o.url, "url", "u", "", "URL of the package.json to analyze")
	f.StringVarP(&o.file, "file", "p", "", "Path to the package.json to analyze")
	f.StringVarP(&o.output, "output", "o", "", "Write the report to this file instead of the console")
	f.StringVar(&o.filter, "filter", "", "Only report one bucket: updated, outdated or phantom")
	f.StringVarP(&o.format, "format", "f", "", "Output format: text, json or sarif (files default to json)")
	f.StringVarP(&o.configPath, "config", "c", "", "Config file (default: "+config.FileName+" next to the manifest)")
	f.StringVar(&o.registry, "registry", "", "Registry base URL")
	f.DurationVar(&o.timeout, "timeout", 0, "Per-request timeout, e.g. 10s")
	f.IntVar(&o.concurrency, "concurrency", 0, "Parallel registry lookups")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "Only print the report and errors")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	f.BoolVar(&o.vulns, "vulns", false, "Check outdated dependencies for known vulnerabilities")
	f.BoolVarP(&o.yes, "yes", "y", false, "Overwrite an existing output file without asking")
	f.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	return analyzeCmd
}

func runAnalyze(cmd *cobra.Command, o *analyzeOptions) error {
	src := manifest.Source{URL: o.url, Path: o.file}
	if err := src.Validate(); err != nil {
		return err
	}
	if o.quiet && o.verbose {
		return fmt.Errorf("%w: --quiet and --verbose cannot be combined", errdefs.ErrInvalidInput)
	}
	var filter analyzer.Bucket
	if o.filter != "" {
		b, err := analyzer.ParseBucket(o.filter)
		if err != nil {
			return err
		}
		filter = b
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrInvalidInput, err)
	}
	if err := applyFlags(cmd, o, cfg); err != nil {
		return err
	}

	// stdout is reserved for the report
	log := logger.New(cmd.ErrOrStderr(), cmd.ErrOrStderr())
	log.SetVerbose(o.verbose)
	log.SetQuiet(o.quiet)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m, err := manifest.NewLoader(cfg.Timeout, log).Load(ctx, src)
	if err != nil {
		return err
	}
	log.Infof("Checking %d dependencies against %s", m.Count(), cfg.Registry)

	client := registry.New(
		registry.WithBaseURL(cfg.Registry),
		registry.WithTimeout(cfg.Timeout),
		registry.WithUserAgent("depcheck/"+Version),
	)
	opts := analyzer.Options{
		Concurrency: cfg.Concurrency,
		Ignore:      cfg.IsPackageIgnored,
		Log:         log,
	}
	if o.vulns {
		opts.Enricher = analyzer.NewEnricher(client)
	}
	report, err := analyzer.NewClassifier(client, opts).Classify(ctx, m)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrInterrupted, ctx.Err())
	}

	return emit(cmd, o, cfg, report, filter, m.Count(), src, log)
}

func loadConfig(o *analyzeOptions) (*config.Config, error) {
	if o.configPath != "" || o.file == "" {
		return config.LoadConfig(o.configPath)
	}
	return config.FindAndLoadConfig(filepath.Dir(o.file))
}

// applyFlags lets explicitly set flags win over the config file.
func applyFlags(cmd *cobra.Command, o *analyzeOptions, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("registry") {
		cfg.Registry = o.registry
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = o.concurrency
	}
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("output") {
		cfg.Output.File = o.output
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrInvalidInput, err)
	}
	return nil
}

func emit(cmd *cobra.Command, o *analyzeOptions, cfg *config.Config, report analyzer.Report,
	filter analyzer.Bucket, declared int, src manifest.Source, log *logger.Logger) error {
	format := cfg.Output.Format
	destination := cfg.Output.File

	if destination == "" && (format == "" || format == "text") {
		out := cmd.OutOrStdout()
		output.NewTextRenderer(out, useColor(out, o.noColor)).Render(report, filter, declared)
		return nil
	}

	var data []byte
	var err error
	switch format {
	case "sarif":
		data, err = output.GenerateSarifReport(report, filter, src.String(), Version)
	default:
		data, err = output.GenerateJSONReport(report, filter)
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if destination == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	var confirm output.Confirmer = newConfirmer()
	if o.yes {
		confirm = output.AssumeYes{}
	}
	if err := output.WriteReport(destination, append(data, '\n'), confirm); err != nil {
		return err
	}
	log.Infof("Report written to %s", destination)
	return nil
}

func useColor(w io.Writer, disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
