//go:build !tinygo

// Command kstat prints the thread table stored in a profile written by
// ember --profile.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/pprof/profile"
	flag "github.com/spf13/pflag"
)

type row struct {
	name     string
	state    string
	priority int64
	cpu      time.Duration
	switches int64
}

func main() {
	sortBy := flag.String("sort", "cpu", "Sort rows by cpu|switches|priority|name.")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: kstat [--sort key] profile.pb.gz")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(os.Stdout, flag.Arg(0), *sortBy); err != nil {
		fmt.Fprintln(os.Stderr, "kstat:", err)
		os.Exit(1)
	}
}

func run(w io.Writer, path, sortBy string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	p, err := profile.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	rows, err := readRows(p)
	if err != nil {
		return err
	}
	if err := sortRows(rows, sortBy); err != nil {
		return err
	}

	var total time.Duration
	for _, r := range rows {
		total += r.cpu
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "NAME\tSTATE\tPRIO\tCPU\tSHARE\tSWITCHES\t")
	for _, r := range rows {
		share := 0.0
		if total > 0 {
			share = 100 * float64(r.cpu) / float64(total)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.1f%%\t%d\t\n", r.name, r.state, r.priority, r.cpu, share, r.switches)
	}
	return tw.Flush()
}

func readRows(p *profile.Profile) ([]row, error) {
	cpu, switches := -1, -1
	for i, st := range p.SampleType {
		switch st.Type {
		case "cpu":
			cpu = i
		case "switches":
			switches = i
		}
	}
	if cpu < 0 || switches < 0 {
		return nil, fmt.Errorf("not a thread profile")
	}

	rows := make([]row, 0, len(p.Sample))
	for _, s := range p.Sample {
		r := row{
			cpu:      time.Duration(s.Value[cpu]),
			switches: s.Value[switches],
		}
		if len(s.Location) > 0 && len(s.Location[0].Line) > 0 && s.Location[0].Line[0].Function != nil {
			r.name = s.Location[0].Line[0].Function.Name
		}
		if v := s.Label["state"]; len(v) > 0 {
			r.state = v[0]
		}
		if v := s.NumLabel["priority"]; len(v) > 0 {
			r.priority = v[0]
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func sortRows(rows []row, by string) error {
	var less func(a, b row) bool
	switch by {
	case "cpu":
		less = func(a, b row) bool { return a.cpu > b.cpu }
	case "switches":
		less = func(a, b row) bool { return a.switches > b.switches }
	case "priority":
		less = func(a, b row) bool { return a.priority < b.priority }
	case "name":
		less = func(a, b row) bool { return a.name < b.name }
	default:
		return fmt.Errorf("unknown sort key %q", by)
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	return nil
}
