package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// FragilityYAML is a two limit state model. RC is discrete with IMLs 0.1
// and 0.5; W is continuous. At a PGA of 0.3 RC assets are distributed
// 0.4/0.3/0.3 over no_damage/slight/complete.
const FragilityYAML = `
limit_states: [slight, complete]
fragility_sets:
  - taxonomy: RC
    imt: PGA
    format: discrete
    imls: [0.1, 0.5]
    poes:
      - [0.2, 1.0]
      - [0.0, 0.6]
  - taxonomy: W
    imt: PGA
    format: continuous
    params:
      - {mean: 0.3, stddev: 0.1}
      - {mean: 0.6, stddev: 0.2}
`

// ExposureYAML holds 17 units within reach of the GMF sites and one asset
// far from every site.
const ExposureYAML = `
description: test portfolio
assets:
  - {id: a1, taxonomy: RC, number: 10, lon: 15.48, lat: 38.09}
  - {id: a2, taxonomy: RC, number: 5, lon: 15.50, lat: 38.10}
  - {id: a3, taxonomy: W, number: 2, lon: 15.50, lat: 38.10}
  - {id: far, taxonomy: W, number: 1, lon: 0.0, lat: 0.0}
`

// GMFsYAML has two sites, two GSIMs and three realizations. g1 is 0.3 in
// every realization at site 1.
const GMFsYAML = `
sites:
  - id: 0
    lon: 15.48
    lat: 38.09
    gmvs:
      PGA:
        g1: [0.2, 0.3, 0.4]
        g2: [0.1, 0.2, 0.6]
  - id: 1
    lon: 15.50
    lat: 38.10
    gmvs:
      PGA:
        g1: [0.3, 0.3, 0.3]
        g2: [0.05, 0.5, 0.45]
`

// JobYAML points at the files written by WriteScenario.
const JobYAML = `
description: test scenario
calculation:
  exposure: exposure.yaml
  fragility: fragility.yaml
  gmfs: gmfs.yaml
  concurrent_tasks: 2
  workers: 2
export:
  dir: out
  compression: snappy
`

// Scenario is a calculation written to disk.
type Scenario struct {
	Dir string
	Job string
}

// File returns the path of name inside the scenario directory.
func (s Scenario) File(name string) string {
	return filepath.Join(s.Dir, name)
}

// ExportDir returns the export directory configured by JobYAML.
func (s Scenario) ExportDir() string {
	return s.File("out")
}

// WriteScenario writes the fixtures into a temporary directory. A non-empty
// exposure replaces ExposureYAML.
func WriteScenario(t testing.TB, exposure string) Scenario {
	t.Helper()
	if exposure == "" {
		exposure = ExposureYAML
	}

	dir := t.TempDir()
	for name, content := range map[string]string{
		"fragility.yaml": FragilityYAML,
		"exposure.yaml":  exposure,
		"gmfs.yaml":      GMFsYAML,
		"job.yaml":       JobYAML,
	} {
		WriteFile(t, filepath.Join(dir, name), content)
	}
	return Scenario{Dir: dir, Job: filepath.Join(dir, "job.yaml")}
}

// WriteFile writes content to path, failing the test on error.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
