//go:build !tinygo

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"ember/app"
	"ember/hal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		headless hal.HeadlessConfig
		zoom     int
		duration time.Duration
		logLevel string
		profile  string
		cfg      app.Config
	)
	flag.BoolVar(&headless.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&headless.Hz, "hz", 60, "Step rate in headless mode.")
	flag.Float64Var(&headless.Scale, "scale", 1, "Speed of the kernel clock relative to the wall clock.")
	flag.IntVar(&zoom, "zoom", 2, "Window scale factor.")
	flag.DurationVar(&duration, "duration", 0, "Stop after this long (0 = run until interrupted).")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (emerg, err, warning, info, debug).")
	flag.StringVar(&profile, "profile", "", "Write a pprof thread profile to this file on exit.")
	flag.StringVar(&cfg.Demo, "demo", "all", "Workload to run: "+strings.Join(app.Demos(), ", ")+".")
	flag.Uint64Var(&cfg.Seed, "seed", 1, "Seed for workload timing jitter.")
	flag.Parse()

	level, err := app.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	cfg.LogLevel = level

	if profile != "" {
		f, err := os.Create(profile)
		if err != nil {
			return err
		}
		defer f.Close()
		cfg.Profile = f
	}

	var sys *app.System
	newApp := func(h hal.HAL) func() error {
		s, err := app.New(h, cfg)
		if err != nil {
			return func() error { return err }
		}
		sys = s
		return s.Step
	}

	if headless.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}
		err = hal.RunHeadless(ctx, newApp, headless)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	} else {
		err = hal.RunWindow(newApp, hal.WindowConfig{Scale: headless.Scale, Zoom: zoom})
	}

	if sys != nil {
		err = errors.Join(err, sys.Close())
	}
	return err
}
