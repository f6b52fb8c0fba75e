package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazecast/air-alert-service/internal/domain"
)

func writeScalesFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scales.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadScales_NoPath(t *testing.T) {
	scales, err := LoadScales("")
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultBreakpoints(), scales.Breakpoints)
	assert.Equal(t, domain.DefaultAlertLevels(), scales.AlertLevels)
	assert.Equal(t, domain.DefaultBenzeneScale(), scales.Benzene)
}

func TestLoadScales_MissingFile(t *testing.T) {
	_, err := LoadScales(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadScales_Overrides(t *testing.T) {
	path := writeScalesFile(t, `
breakpoints:
  PM25:
    - [0, 10, 100, 50]
    - [10, 20, 50, 0]
alert_levels:
  best: 60
  moderate: 10
  poor: -90
  severe: -190
benzene_thresholds:
  elevated: 0.9
  high: 1.5
  very_high: 2.0
  hazardous: 2.5
`)

	scales, err := LoadScales(path)
	require.NoError(t, err)

	require.Len(t, scales.Breakpoints, 1)
	require.Len(t, scales.Breakpoints["PM25"], 2)
	assert.Equal(t, domain.Breakpoint{ConcLo: 10, ConcHi: 20, IdxLo: 50, IdxHi: 0}, scales.Breakpoints["PM25"][1])
	assert.Equal(t, domain.AlertLevels{Best: 60, Moderate: 10, Poor: -90, Severe: -190}, scales.AlertLevels)
	assert.Equal(t, domain.BenzeneScale{Elevated: 0.9, High: 1.5, VeryHigh: 2.0, Hazardous: 2.5}, scales.Benzene)
}

func TestLoadScales_PartialOverride(t *testing.T) {
	path := writeScalesFile(t, `
alert_levels:
  best: 55
  moderate: 0
  poor: -100
  severe: -200
`)

	scales, err := LoadScales(path)
	require.NoError(t, err)

	assert.Equal(t, 55.0, scales.AlertLevels.Best)
	assert.Equal(t, domain.DefaultBreakpoints(), scales.Breakpoints)
	assert.Equal(t, domain.DefaultBenzeneScale(), scales.Benzene)
}

func TestLoadScales_UppercasesPollutantKeys(t *testing.T) {
	path := writeScalesFile(t, `
breakpoints:
  pm2.5:
    - [0, 10, 100, 50]
    - [10, 20, 50, 0]
`)

	scales, err := LoadScales(path)
	require.NoError(t, err)

	// Sample codes arrive uppercased, so a lowercase key would never
	// match a reading.
	require.Len(t, scales.Breakpoints, 1)
	require.Len(t, scales.Breakpoints["PM2.5"], 2)
	_, lower := scales.Breakpoints["pm2.5"]
	assert.False(t, lower)
}

func TestLoadScales_InvalidYAML(t *testing.T) {
	path := writeScalesFile(t, "breakpoints: [not: a: map")
	_, err := LoadScales(path)
	require.Error(t, err)
}

func TestLoadScales_RejectsUnorderedLevels(t *testing.T) {
	path := writeScalesFile(t, `
alert_levels:
  best: -10
  moderate: 0
  poor: -100
  severe: -200
`)
	_, err := LoadScales(path)
	require.Error(t, err)
}
