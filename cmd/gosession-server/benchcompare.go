package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

const defaultRegressionThreshold = 0.30

// trackedBenchmarks are the hot paths guarded against regression, keyed by
// benchmark name without the -GOMAXPROCS suffix.
var trackedBenchmarks = map[string][]string{
	"BenchmarkVerifyAccess": {"ns/op", "allocs/op"},
	"BenchmarkRefresh":      {"ns/op"},
	"BenchmarkLogin":        {"ns/op"},
}

var errRegression = errors.New("performance regression threshold exceeded")

type benchSamples map[string]map[string][]float64

func newBenchCompareCmd() *cobra.Command {
	var (
		baseline, candidate string
		threshold           float64
	)
	cmd := &cobra.Command{
		Use:   "bench-compare",
		Short: "Compare two `go test -bench` outputs and fail on regressions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if threshold < 0 {
				return errors.New("--threshold must be >= 0")
			}
			base, err := readBenchFile(baseline)
			if err != nil {
				return fmt.Errorf("parse baseline: %w", err)
			}
			cand, err := readBenchFile(candidate)
			if err != nil {
				return fmt.Errorf("parse candidate: %w", err)
			}
			failures := compareBenchmarks(cmd.OutOrStdout(), base, cand, threshold)
			if len(failures) > 0 {
				for _, f := range failures {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", f)
				}
				return errRegression
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&baseline, "baseline", "", "path to baseline benchmark output")
	f.StringVar(&candidate, "candidate", "", "path to candidate benchmark output")
	f.Float64Var(&threshold, "threshold", defaultRegressionThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	_ = cmd.MarkFlagRequired("baseline")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}

// compareBenchmarks prints one row per tracked metric and returns the
// failures. Benchmarks are visited in name order.
func compareBenchmarks(w io.Writer, baseline, candidate benchSamples, threshold float64) []string {
	names := make([]string, 0, len(trackedBenchmarks))
	for name := range trackedBenchmarks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	fmt.Fprintln(w, "benchmark metric baseline candidate delta")
	for _, name := range names {
		for _, metric := range trackedBenchmarks[name] {
			baseSamples := baseline[name][metric]
			candSamples := candidate[name][metric]
			if len(baseSamples) == 0 || len(candSamples) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, metric))
				continue
			}

			baseMedian := median(baseSamples)
			candMedian := median(candSamples)
			if baseMedian <= 0 {
				// allocs/op of zero cannot regress by ratio; any allocation is one.
				if metric == "allocs/op" && baseMedian == 0 && candMedian > 0 {
					failures = append(failures, fmt.Sprintf("%s %s went from 0 to %.0f", name, metric, candMedian))
				}
				continue
			}

			delta := (candMedian - baseMedian) / baseMedian
			fmt.Fprintf(w, "%s %s %.3f %.3f %+0.2f%%\n", name, metric, baseMedian, candMedian, delta*100)
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, metric, delta*100, threshold*100))
			}
		}
	}
	return failures
}

func readBenchFile(path string) (benchSamples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseBenchmarks(f)
}

func parseBenchmarks(r io.Reader) (benchSamples, error) {
	samples := benchSamples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name := normalizeBenchmarkName(fields[0])
		if _, ok := trackedBenchmarks[name]; !ok {
			continue
		}
		if _, ok := samples[name]; !ok {
			samples[name] = map[string][]float64{}
		}
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			samples[name][fields[i+1]] = append(samples[name][fields[i+1]], value)
		}
	}
	return samples, scanner.Err()
}

func normalizeBenchmarkName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
