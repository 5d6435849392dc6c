// Command antenna measures the radiation pattern of an antenna: it steps a
// rotator through a full revolution, takes one VNA sweep per angle and writes
// the raw matrix, polar plots and a run record.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/antenna.report/internal/archive"
	"github.com/banshee-data/antenna.report/internal/config"
	"github.com/banshee-data/antenna.report/internal/monitoring"
	"github.com/banshee-data/antenna.report/internal/motor"
	"github.com/banshee-data/antenna.report/internal/pattern"
	"github.com/banshee-data/antenna.report/internal/poll"
	"github.com/banshee-data/antenna.report/internal/serialio"
	"github.com/banshee-data/antenna.report/internal/sweep"
	"github.com/banshee-data/antenna.report/internal/units"
	"github.com/banshee-data/antenna.report/internal/version"
	"github.com/banshee-data/antenna.report/internal/vna"
)

// Exit codes
const (
	exitOK           = 0
	exitConfig       = 1
	exitNotConnected = 2
	exitMotor        = 3
	exitAcquisition  = 4
	exitOutput       = 5
)

type options struct {
	configPath  string
	devMode     bool
	debugListen string
	outputDir   string
	archivePath string
	label       string
	freq        string
	logLevel    string
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("antenna", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Run configuration (.config, .json, .yaml or .toml); defaults apply when empty")
	fs.BoolVar(&o.devMode, "dev", false, "Run against simulated rotator and VNA")
	fs.StringVar(&o.debugListen, "debug-listen", "", "Serve /debug/ status and SQL on this address")
	fs.StringVar(&o.outputDir, "output", "", "Output directory (overrides output_dir)")
	fs.StringVar(&o.archivePath, "archive", "", "sqlite run archive (overrides archive_path)")
	fs.StringVar(&o.label, "label", "", "Prefix for output file names")
	fs.StringVar(&o.freq, "freq", "", "Zero-span frequency, e.g. 915MHz (overrides the configured window)")
	fs.StringVar(&o.logLevel, "log", "ops", "Package log level: quiet, ops, diag, trace")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// loadConfig reads the configuration file and applies command-line overrides.
func loadConfig(o *options) (*config.Config, error) {
	cfg := config.Defaults()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}
	if o.archivePath != "" {
		cfg.ArchivePath = o.archivePath
	}
	if o.freq != "" {
		hz, err := units.ParseFrequency(o.freq)
		if err != nil {
			return nil, err
		}
		cfg.Window = config.CenterWindow(hz)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	if o.showVersion {
		fmt.Fprintf(stdout, "antenna %s\n", version.String())
		return exitOK
	}

	level, err := monitoring.ParseVerbosity(o.logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	log.SetOutput(stderr)
	monitoring.ConfigureLogs(level, stderr)

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "configuration: %v\n", err)
		return exitConfig
	}
	monitoring.Logf("sweep %s, %d points, %d angles on motor %d", cfg.Window, cfg.Points, cfg.NAngles, cfg.MotorID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := monitoring.NewTracker(nil)

	var runs *archive.Archive
	if cfg.ArchivePath != "" {
		if runs, err = archive.Open(cfg.ArchivePath); err != nil {
			fmt.Fprintf(stderr, "archive: %v\n", err)
			return exitOutput
		}
		defer runs.Close()
	}

	if o.debugListen != "" {
		mux := http.NewServeMux()
		tracker.AttachAdminRoutes(mux)
		if runs != nil {
			if err := runs.AttachAdminRoutes(mux); err != nil {
				monitoring.Logf("archive admin routes unavailable: %v", err)
			}
		}
		shutdown := serveDebug(o.debugListen, mux)
		defer shutdown()
	}

	r := &runner{cfg: cfg, opts: o, stdout: stdout, stderr: stderr, tracker: tracker, runs: runs, level: level}
	code, err := r.run(ctx)
	if err != nil {
		tracker.Fail(err)
		fmt.Fprintf(stderr, "antenna: %v\n", err)
	}
	return code
}

// runner holds the resources of one measurement run.
type runner struct {
	cfg     *config.Config
	opts    *options
	stdout  io.Writer
	stderr  io.Writer
	tracker *monitoring.Tracker
	runs    *archive.Archive
	level   monitoring.Verbosity

	proc *vna.Process
}

func (r *runner) run(ctx context.Context) (int, error) {
	cfg := r.cfg

	var dev *devRig
	addr := cfg.VNAAddress()
	if r.opts.devMode {
		var err error
		if dev, err = newDevRig(cfg); err != nil {
			return exitNotConnected, err
		}
		defer dev.Close()
		addr = dev.instrument.Addr()
	} else if cfg.VNAPath != "" {
		if err := r.startInstrument(ctx, addr); err != nil {
			return exitNotConnected, err
		}
		defer r.proc.Stop()
	}

	r.tracker.SetPhase(monitoring.PhaseConnecting)
	client, err := vna.Dial(ctx, addr)
	if err != nil {
		return exitNotConnected, err
	}
	defer client.Close()
	device, err := client.Connected(ctx)
	if err != nil {
		return exitNotConnected, err
	}
	monitoring.Logf("instrument connected: %s", device)

	var port serialio.SerialPorter
	if dev != nil {
		port = dev.rotator
	} else if port, err = serialio.OpenPort(cfg.SerialPort, serialio.DefaultPortOptions()); err != nil {
		return exitMotor, err
	}
	eol, err := serialio.ParseEOL(cfg.MotorEOL)
	if err != nil {
		port.Close()
		return exitConfig, err
	}
	link, err := motor.NewLink(serialio.NewLineConn(port, eol), motor.Options{
		StepsPerRev: cfg.StepsPerRev,
		Policy:      poll.Policy{Interval: cfg.PollInterval, Timeout: cfg.MoveTimeout},
	})
	if err != nil {
		port.Close()
		return exitConfig, err
	}
	defer link.Close()

	acq := vna.NewAcquirer(client, vna.SettingsFromConfig(cfg),
		poll.Policy{Interval: cfg.PollInterval, Timeout: cfg.AcquireTimeout}, nil)

	seqOpts := sweep.OptionsFromConfig(cfg)
	seqOpts.OnProgress = func(p sweep.Progress) {
		fmt.Fprintf(r.stdout, "Swept %d/%d\n", p.Done, p.Total)
	}
	seq, err := sweep.NewSequencer(link, acq, seqOpts)
	if err != nil {
		return exitConfig, err
	}
	r.tracker.Bind(seq.State)
	r.tracker.SetPhase(monitoring.PhaseSweeping)

	started := time.Now()
	m, err := seq.Run(ctx)
	if err != nil {
		if errors.Is(err, sweep.ErrMotorNotReady) {
			return exitMotor, err
		}
		return exitAcquisition, err
	}
	completed := time.Now()

	// The instrument is no longer needed once the matrix is complete.
	if r.proc != nil {
		if err := r.proc.Stop(); err != nil {
			monitoring.Logf("stopping instrument process: %v", err)
		}
	}

	r.tracker.SetPhase(monitoring.PhaseSaving)
	freqs := cfg.Window.Frequencies(cfg.Points)
	arts := &pattern.Artifacts{Dir: cfg.OutputDir, Floor: cfg.PlotMin, Label: r.opts.label}
	saved, err := arts.Save(m, freqs)
	if err != nil {
		return exitOutput, err
	}
	for _, f := range saved.Files() {
		fmt.Fprintf(r.stdout, "wrote %s\n", f)
	}

	var runID string
	if r.runs != nil {
		rec := archive.RunFromConfig(cfg)
		rec.Label = r.opts.label
		rec.Device = device
		rec.StartedAt = started
		rec.CompletedAt = completed
		rec.CSVPath = saved.CSV
		if runID, err = r.runs.Record(ctx, rec, m, seq.Schedule(), freqs, saved.Files()); err != nil {
			return exitOutput, err
		}
		fmt.Fprintf(r.stdout, "archived run %s\n", runID)
	}
	r.tracker.Done(runID)
	return exitOK, nil
}

func (r *runner) startInstrument(ctx context.Context, addr string) error {
	r.tracker.SetPhase(monitoring.PhaseStarting)
	r.proc = &vna.Process{
		Path:         r.cfg.VNAPath,
		Args:         r.cfg.VNAArgs,
		ReadyLogLine: r.cfg.ReadyLogLine,
		ReadyDial:    addr,
		ReadyTimeout: r.cfg.ReadyTimeout,
	}
	if r.level >= monitoring.Diag {
		r.proc.Output = r.stderr
	}
	if err := r.proc.Start(ctx); err != nil {
		return err
	}
	if err := r.proc.WaitReady(ctx); err != nil {
		r.proc.Stop()
		return err
	}
	return nil
}

// serveDebug starts the admin server and returns its shutdown func.
func serveDebug(addr string, mux *http.ServeMux) func() {
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("debug server: %v", err)
		}
	}()
	monitoring.Logf("debug server listening on %s", addr)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("debug server shutdown error: %v", err)
			server.Close()
		}
	}
}
