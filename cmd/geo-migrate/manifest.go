package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// writeManifest stores the manifest and returns its path.
func writeManifest(outputDir string, manifest *runManifestV1) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	ts := time.Now().UTC().Format("20060102T150405Z")
	name := fmt.Sprintf("geo_migrate_manifest_%s_%s.json", ts, manifest.RunID)
	path := filepath.Join(outputDir, name)

	b, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, b, 0o644)
}

// writeMetricsTextfile dumps the default registry for the node-exporter
// textfile collector.
func writeMetricsTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
