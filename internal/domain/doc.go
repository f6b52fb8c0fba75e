// Package domain models air-quality readings from the national Envista
// sensor network and the rules that turn them into alert decisions.
//
// # Quality index
//
// The national index is inverted: 100 is the cleanest possible air, values
// fall as pollution rises, and extreme pollution drives the index negative.
// Each pollutant contributes a sub-index on a 0-500 scale computed by
// piecewise linear interpolation over its breakpoint table, and the
// station's index is 100 minus the worst sub-index:
//
//	sub = idx_lo + (idx_hi - idx_lo) * (value - conc_lo) / (conc_hi - conc_lo)
//	index = round(100 - max(sub-indices))
//
// Breakpoint ranges are scanned low-to-high with inclusive bounds, so a
// concentration sitting exactly on a range boundary resolves to the lower
// range. This first-match-wins rule closed a historical gap where boundary
// values (PM2.5 at 37.2 with the old non-contiguous table) saturated to the
// worst sub-index instead of interpolating; see TestQualityIndex_BoundaryRegression.
//
// A station reporting no recognized pollutants gets the neutral index 50.
//
// # Severity
//
// Severity is a closed, ordered enum {best < moderate < poor < severe}
// derived from the index by configurable cut points (51 / 0 / -100 by
// default). Benzene, a carcinogen with no safe exposure level, has its own
// concentration-only scale {none < elevated < high < very-high < hazardous}
// that is independent of the index. For notification decisions the two are
// compared on the index scale: elevated maps to moderate, high and
// very-high to poor, hazardous to severe, and the worse of the two wins.
//
// # Time bands
//
// Subscribers opt into four fixed daily windows in local (Asia/Jerusalem by
// default) time: morning 06-12, afternoon 12-18, evening 18-22, and an
// overnight band 22-06 that wraps past midnight.
//
// # Batching
//
// The station set is partitioned round-robin by sorted station id so that
// each scheduler tick covers a disjoint, deterministic slice. When the
// trigger passes no batch parameters, the batch is derived from the
// minute-of-hour (two batches, alternating on a 10-minute cycle).
package domain
