package app

import (
	"cmp"
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strings"

	"ember/hal"
	"ember/internal/buildinfo"
	"ember/kernel"
	"ember/ktime"
)

var (
	statusBG = color.RGBA{R: 0x10, G: 0x18, B: 0x20, A: 0xFF}
	statusFG = color.RGBA{R: 0xE0, G: 0xE8, B: 0xF0, A: 0xFF}
	fatalBG  = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	fatalFG  = color.RGBA{R: 0, G: 0, B: 0, A: 0xFF}
)

// snapshot is the thread table as seen from one interrupt.
type snapshot struct {
	uptime  ktime.Time
	threads []kernel.ThreadInfo
}

func statusLines(s snapshot) []string {
	lines := []string{
		fmt.Sprintf("EMBER %s up %d.%03ds threads %d", buildinfo.Short(), s.uptime.Sec, s.uptime.Usec/1000, len(s.threads)),
		"",
		fmt.Sprintf("%-11s %4s %4s %-8s %-5s %6s %7s", "NAME", "BASE", "CUR", "STATE", "SYNC", "SW", "CPU MS"),
	}
	threads := slices.Clone(s.threads)
	slices.SortFunc(threads, func(a, b kernel.ThreadInfo) int {
		if c := cmp.Compare(a.BasePriority, b.BasePriority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	for _, t := range threads {
		lines = append(lines, fmt.Sprintf("%-11.11s %4s %4s %-8.8s %-5.5s %6d %7d",
			t.Name, prioString(t.BasePriority), prioString(t.CurrentPriority),
			t.State, t.Sync, t.Switches, t.Runtime.ToMs()))
	}
	return lines
}

func prioString(p kernel.Priority) string {
	if p == kernel.IdlePriority {
		return "idle"
	}
	return fmt.Sprint(p)
}

func fatalLines(err error) []string {
	lines := []string{"Ember fatal error:"}
	var fe *kernel.FatalError
	if !errors.As(err, &fe) {
		return append(lines, err.Error())
	}
	lines = append(lines,
		"code: "+fe.Code.String(),
		"where: "+fe.Where,
		"thread: "+fe.Thread,
	)
	if len(fe.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(fe.Stack), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// showFatal logs a fatal error and paints it over the whole screen.
func showFatal(h hal.HAL, err error) {
	lines := fatalLines(err)
	if l := h.Logger(); l != nil {
		for _, line := range lines {
			l.WriteLineString(line)
		}
	}
	if d := h.Display(); d != nil {
		if s := newTextScreen(d.Framebuffer()); s != nil {
			s.draw(fatalBG, fatalFG, lines)
		}
	}
}
