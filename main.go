package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const stopTimeout = 60 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func usage(fSet *flag.FlagSet) {
	fmt.Fprintf(fSet.Output(), "usage: %s [flags] start|stop|restart\n", fSet.Name())
	fSet.PrintDefaults()
}

// run executes one lifecycle command and returns the process exit code:
// 2 for a bad command line, 1 for a failure, 0 otherwise.
func run(args []string, stderr io.Writer) int {
	fSet := flag.NewFlagSet("powermon", flag.ContinueOnError)
	fSet.SetOutput(stderr)
	fSet.Usage = func() { usage(fSet) }
	registerFlags(fSet)

	if err := fSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fSet.NArg() != 1 {
		fmt.Fprintln(stderr, "expected exactly one command")
		usage(fSet)
		return 2
	}

	command := fSet.Arg(0)
	switch command {
	case "start", "stop", "restart":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		usage(fSet)
		return 2
	}

	config, err := LoadConfig(
		WithDefaults(),
		WithFile(fSet.Lookup("config").Value.String()),
		WithDotEnv(".env"),
		WithEnv(),
		WithFlags(fSet),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	switch command {
	case "stop":
		return stop(config, stderr)
	case "restart":
		if code := stop(config, stderr); code != 0 {
			return code
		}
	}
	return start(config, stderr)
}

func stop(config *Config, stderr io.Writer) int {
	err := stopDaemon(config.PIDFile, stopTimeout)
	if errors.Is(err, ErrNotRunning) {
		fmt.Fprintf(stderr, "%v\n", err)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Failed to stop daemon: %v\n", err)
		return 1
	}
	return 0
}

// start runs the daemon in the foreground until SIGINT or SIGTERM. Process
// supervision (systemd, runit) is expected to background and restart it.
func start(config *Config, stderr io.Writer) int {
	if err := config.Validate(); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	logger, closeLog, err := newLogger(config.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open log: %v\n", err)
		return 1
	}
	defer closeLog()

	if err := writePIDFile(config.PIDFile); err != nil {
		logger.Error("Failed to write PID file", "error", err, "path", config.PIDFile)
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer func() {
		if err := removePIDFile(config.PIDFile); err != nil {
			logger.Error("Failed to remove PID file", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting power monitor daemon", "pid", os.Getpid(), "sms_port", config.SMS.SerialPort, "sensor_bus", config.Sensor.Bus, "sensor_address", fmt.Sprintf("%#x", config.Sensor.Address))

	if err := serve(ctx, config, logger); err != nil {
		logger.Error("Power monitor stopped", "error", err)
		return 1
	}

	logger.Info("Power monitor stopped")
	return 0
}

// newLogger builds the JSON logger. Logs go to the configured file in append
// mode, or to fallback when none is set.
func newLogger(config LogConfig, fallback io.Writer) (*slog.Logger, func(), error) {
	logLevel, err := parseLogLevel(config.Level)
	if err != nil {
		return nil, nil, err
	}

	out := fallback
	closeFn := func() {}
	if config.File != "" {
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closeFn = func() { f.Close() }
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel}))
	return logger, closeFn, nil
}
