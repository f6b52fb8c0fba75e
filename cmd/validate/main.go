// Command validate checks an AQI scales override file before it is rolled
// out. It loads the file through the same loader the service uses, then
// prints the effective breakpoint tables and thresholds and classifies a
// few probe concentrations so a reviewer can sanity-check the curves.
//
// Usage:
//
//	go run ./cmd/validate -scales config/scales.yaml
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/hazecast/air-alert-service/internal/config"
	"github.com/hazecast/air-alert-service/internal/domain"
)

func main() {
	scalesPath := flag.String("scales", "", "path to the scales YAML override (empty validates the built-in defaults)")
	flag.Parse()

	scales, err := config.LoadScales(*scalesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid scales file: %v\n", err)
		os.Exit(1)
	}

	printBreakpoints(scales.Breakpoints)
	printLevels(scales.AlertLevels)
	printBenzene(scales.Benzene)
	probe(scales)
}

func printBreakpoints(table domain.BreakpointTable) {
	pollutants := make([]string, 0, len(table))
	for name := range table {
		pollutants = append(pollutants, name)
	}
	sort.Strings(pollutants)

	fmt.Println("== Breakpoints ==")
	for _, name := range pollutants {
		fmt.Printf("%s:\n", name)
		for _, row := range table[name] {
			fmt.Printf("  conc [%g, %g] -> index [%g, %g]\n",
				row.ConcLo, row.ConcHi, row.IdxLo, row.IdxHi)
		}
	}
}

func printLevels(levels domain.AlertLevels) {
	fmt.Println("== Alert levels ==")
	fmt.Printf("  best < %g, moderate < %g, poor < %g, severe < %g\n",
		levels.Best, levels.Moderate, levels.Poor, levels.Severe)
}

func printBenzene(scale domain.BenzeneScale) {
	fmt.Println("== Benzene (ppb) ==")
	fmt.Printf("  elevated >= %g, high >= %g, very high >= %g, hazardous >= %g\n",
		scale.Elevated, scale.High, scale.VeryHigh, scale.Hazardous)
}

// probe runs a handful of representative concentrations through the
// calculator so threshold edits show their effect immediately.
func probe(scales config.Scales) {
	calc := domain.NewCalculator(scales.Breakpoints, scales.AlertLevels, scales.Benzene)

	fmt.Println("== Probes ==")
	probes := []map[string]float64{
		{"PM2.5": 12.0},
		{"PM2.5": 37.2},
		{"PM2.5": 37.2, "O3": 95},
		{"NO2": 310},
		{"PM10": 150, "BENZENE": 1.8},
	}
	for _, values := range probes {
		set := domain.SampleSet{Samples: make(map[string]domain.Sample, len(values))}
		for code, v := range values {
			set.Samples[code] = domain.Sample{Value: v}
		}
		r := calc.BuildReading(domain.Station{}, set)
		line := fmt.Sprintf("  %v -> index %d (%s)", values, r.Index, r.IndexSeverity)
		if r.BenzeneSeverity != domain.BenzeneNone {
			line += fmt.Sprintf(", benzene %g ppb (%s)", r.Benzene, r.BenzeneSeverity)
		}
		fmt.Println(line)
	}
}
