package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/pgxbridge/internal/abiprobe"
	"github.com/woxQAQ/pgxbridge/internal/config"
	"github.com/woxQAQ/pgxbridge/internal/introspect"
	"github.com/woxQAQ/pgxbridge/internal/synth"
)

type options struct {
	Config  string `short:"c" long:"config" env:"PGXGEN_CONFIG" description:"configuration file" default:"pgxgen.yaml"`
	Dbg     bool   `long:"dbg" description:"debug logging"`
	NoColor bool   `long:"no-color" description:"plain output"`

	Generate struct {
		Check    bool  `long:"check" description:"list stale files instead of writing them"`
		Versions []int `short:"v" long:"version" description:"only these host versions"`
	} `command:"generate" description:"introspect the configured headers and write the bindings"`

	Inspect struct {
		Version int  `short:"v" long:"version" description:"host version to describe"`
		Report  bool `long:"report" description:"print the capability report of all versions"`
	} `command:"inspect" description:"print the description of one host version"`

	Probe struct {
		DSN     string `long:"dsn" env:"PGXGEN_PROBE_DSN" description:"connection string of the live host"`
		Version int    `short:"v" long:"version" required:"true" description:"host version the bindings target"`
	} `command:"probe" description:"compare a live host's ABI with the bindings"`
}

var (
	version = "dev"
	commit  = "none"
)

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		os.Exit(1)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, p.Active.Name, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgHiRed).Sprintf("pgxgen: %v", err))
		os.Exit(1)
	}
}

// app holds what every command needs.
type app struct {
	cfg    *config.Config
	allow  *introspect.Allowlist
	logger *zap.Logger
	out    io.Writer
}

func run(ctx context.Context, opts options, command string, out io.Writer) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel, opts.Dbg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	logger.Debug("starting pgxgen", zap.String("version", version), zap.String("commit", commit), zap.String("command", command))

	allow, err := introspect.LoadAllowlist(cfg.Allowlist)
	if err != nil {
		return err
	}
	a := &app{cfg: cfg, allow: allow, logger: logger, out: out}

	switch command {
	case "generate":
		return a.generate(ctx, opts.Generate.Versions, opts.Generate.Check)
	case "inspect":
		if opts.Inspect.Report {
			return a.report(ctx)
		}
		return a.inspect(ctx, opts.Inspect.Version)
	case "probe":
		return a.probe(ctx, opts.Probe.DSN, opts.Probe.Version)
	}
	return fmt.Errorf("unknown command %q", command)
}

func newLogger(level string, dbg bool) (*zap.Logger, error) {
	if dbg || level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func (a *app) introspector() (*introspect.Introspector, error) {
	plat, err := introspect.ParsePlatform(a.cfg.Platform)
	if err != nil {
		return nil, err
	}
	opts := []introspect.Option{
		introspect.WithPlatform(plat),
		introspect.WithParallelism(a.cfg.Parallelism),
	}
	if a.cfg.CacheDir != "" {
		opts = append(opts, introspect.WithCacheDir(a.cfg.CacheDir))
	}
	return introspect.New(a.allow, a.logger, opts...), nil
}

// describe reads the headers of versions. Versions that fail are
// reported in the error; the others are returned.
func (a *app) describe(ctx context.Context, versions []int) (map[int]*introspect.Description, error) {
	in, err := a.introspector()
	if err != nil {
		return nil, err
	}
	return in.RunAll(ctx, versions, a.cfg.VersionIncludeDirs)
}

func (a *app) synthesize(ctx context.Context, versions []int) (*synth.Result, error) {
	fix, err := synth.LoadCorrections(a.cfg.Corrections)
	if err != nil {
		return nil, err
	}
	descs, descErr := a.describe(ctx, versions)
	if len(descs) == 0 {
		return nil, descErr
	}
	s := synth.New(a.allow, fix, a.logger, synth.WithParallelism(a.cfg.Parallelism))
	res, genErr := s.Generate(ctx, descs)
	return res, multierror.Append(descErr, genErr).ErrorOrNil()
}

// generate writes the files of every version that renders, then reports
// the versions that did not.
func (a *app) generate(ctx context.Context, versions []int, check bool) error {
	if len(versions) == 0 {
		versions = a.cfg.Versions
	}
	st := time.Now()
	res, err := a.synthesize(ctx, versions)
	if res == nil {
		return err
	}

	if check {
		stale, serr := res.Stale(a.cfg.OutputDir)
		if serr != nil {
			return serr
		}
		for _, name := range stale {
			fmt.Fprintln(a.out, color.New(color.FgYellow).Sprintf("stale: %s", name))
		}
		if len(stale) > 0 {
			return multierror.Append(err, fmt.Errorf("%d generated files are out of date in %s", len(stale), a.cfg.OutputDir))
		}
		return err
	}

	if werr := res.Write(a.cfg.OutputDir); werr != nil {
		return multierror.Append(err, werr)
	}
	for _, f := range res.Files {
		fmt.Fprintf(a.out, "%s %s\n", color.GreenString("wrote"), f.Name)
	}
	a.logger.Info("bindings generated", zap.Int("files", len(res.Files)), zap.Duration("elapsed", time.Since(st)))
	return err
}

func (a *app) inspect(ctx context.Context, version int) error {
	if version == 0 {
		return errors.New("inspect needs --version or --report")
	}
	descs, err := a.describe(ctx, []int{version})
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)
	if err := enc.Encode(descs[version]); err != nil {
		return fmt.Errorf("failed to encode description: %w", err)
	}
	return enc.Close()
}

func (a *app) report(ctx context.Context) error {
	res, err := a.synthesize(ctx, a.cfg.Versions)
	if res == nil {
		return err
	}
	r := res.Report
	fmt.Fprintf(a.out, "%s %v\n", color.New(color.Bold).Sprint("versions:"), r.Versions)
	if len(r.Partial) == 0 {
		fmt.Fprintln(a.out, color.GreenString("every generated name is declared by every version"))
	}
	for _, c := range r.Partial {
		fmt.Fprintf(a.out, "%-9s %s  %s\n", c.Kind, color.New(color.FgCyan).Sprint(c.Name), color.YellowString("since %d, only in %v", c.Since, c.Versions))
	}
	return err
}

func (a *app) probe(ctx context.Context, dsn string, version int) error {
	if dsn == "" {
		dsn = a.cfg.Probe.DSN
	}
	if dsn == "" {
		return errors.New("probe needs --dsn or probe.dsn in the configuration")
	}
	descs, err := a.describe(ctx, []int{version})
	if err != nil {
		return err
	}
	want, err := abiprobe.FromDescription(descs[version])
	if err != nil {
		return err
	}

	p, err := abiprobe.Open(ctx, dsn, time.Duration(a.cfg.Probe.Timeout)*time.Second, a.logger)
	if err != nil {
		return err
	}
	defer p.Close()

	have, err := p.Check(ctx, want)
	var mismatch *abiprobe.ABIMismatchError
	switch {
	case errors.As(err, &mismatch):
		for _, m := range mismatch.Mismatches {
			fmt.Fprintln(a.out, color.RedString("mismatch: %s", m))
		}
		return err
	case err != nil:
		return err
	}
	fmt.Fprintf(a.out, "%s host %d (server_version_num %d) matches the pg%d bindings\n",
		color.GreenString("ok:"), have.Major(), have.VersionNum, version)
	return nil
}
