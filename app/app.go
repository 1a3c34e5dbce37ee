// Package app boots the kernel on a HAL, starts the demo workloads and
// paints the thread table.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"

	"ember/arch/host"
	"ember/hal"
	"ember/internal/buildinfo"
	"ember/kernel"
)

// statusEvery is the number of steps between thread table refreshes.
const statusEvery = 10

// Config selects the workload of a run.
type Config struct {
	// Demo names a workload from Demos.
	Demo string
	Seed uint64

	LogLevel logiface.Level
	// Kernel is the kernel configuration. Its zero value is the default.
	Kernel kernel.Config
	// Profile receives a pprof thread profile when the system is closed.
	Profile io.Writer
}

// System is a running kernel and its workloads.
type System struct {
	h   hal.HAL
	cfg Config
	log *logiface.Logger[logiface.Event]

	k   *kernel.Kernel
	cpu *host.CPU

	cancel context.CancelFunc
	g      *errgroup.Group

	mu     sync.Mutex
	snap   snapshot
	halted error

	screen *textScreen
	steps  uint64
	shown  bool
}

// New boots the kernel and starts the configured workload on its own
// goroutine.
func New(h hal.HAL, cfg Config) (*System, error) {
	picked, err := selectDemos(cfg.Demo)
	if err != nil {
		return nil, err
	}

	s := &System{
		h:   h,
		cfg: cfg,
		log: newLogger(h, cfg.LogLevel),
	}
	if d := h.Display(); d != nil {
		s.screen = newTextScreen(d.Framebuffer())
	}

	kc := cfg.Kernel
	if kc.MaxThreads == 0 {
		kc = kernel.DefaultConfig()
	}
	kc.Logger = s.log
	if l := h.Logger(); l != nil {
		kc.Console = l
	}
	kc.OnError = func(err *kernel.ThreadError) {
		s.log.Warning().Err(err).Str("thread", err.Thread).Log("thread terminated")
	}

	s.cpu = host.New(h.Timer())
	s.k = kernel.New(s.cpu, s.cpu, kc)
	s.cpu.Attach(s.k)

	env := &demoEnv{
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		led: h.LED(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.g, ctx = errgroup.WithContext(ctx)
	s.g.Go(func() error {
		err := s.cpu.Run(ctx, func() error {
			for _, d := range picked {
				d(s.k, env)
			}
			s.k.Start()
			return nil
		})
		s.mu.Lock()
		s.halted = err
		s.mu.Unlock()
		if errors.Is(err, host.ErrStopped) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	s.log.Info().
		Str("demo", cfg.Demo).
		Uint64("seed", cfg.Seed).
		Str("build", buildinfo.String()).
		Log("system started")
	return s, nil
}

// Step refreshes the screen. It returns the error that halted the kernel,
// once it has been shown.
func (s *System) Step() error {
	s.mu.Lock()
	halted, snap := s.halted, s.snap
	s.mu.Unlock()

	if halted != nil {
		if !s.shown {
			s.shown = true
			showFatal(s.h, halted)
		}
		return halted
	}

	if s.steps%statusEvery == 0 {
		s.cpu.Interrupt(s.sample)
		if s.screen != nil && snap.threads != nil {
			s.screen.draw(statusBG, statusFG, statusLines(snap))
		}
	}
	s.steps++
	return nil
}

// sample runs in interrupt context.
func (s *System) sample() {
	snap := snapshot{
		uptime:  s.k.Uptime(),
		threads: s.k.ThreadStats(),
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Close writes the profile if one was requested, then stops the kernel.
func (s *System) Close() error {
	var err error
	if s.cfg.Profile != nil {
		err = s.writeProfile()
	}
	s.cpu.Stop()
	s.cancel()
	werr := s.g.Wait()
	if s.shown {
		// already returned by Step
		werr = nil
	}
	return errors.Join(err, werr)
}

func (s *System) writeProfile() error {
	done := make(chan error, 1)
	s.cpu.Interrupt(func() { done <- s.k.WriteProfile(s.cfg.Profile) })
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		return fmt.Errorf("app: profile: kernel did not respond")
	}
}

// Run boots the system on h and refreshes it forever. It is the
// entry point for targets without a host runner.
func Run(h hal.HAL, cfg Config) error {
	s, err := New(h, cfg)
	if err != nil {
		return err
	}
	t := time.NewTicker(time.Second / 30)
	defer t.Stop()
	for range t.C {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}
