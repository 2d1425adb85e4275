package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
	"github.com/iota-uz/geo-migrate/modules/geography/services"
)

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return withCode(exitDB, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

type phaseSummary struct {
	Phase        string         `json:"phase"`
	Created      int            `json:"created"`
	Updated      int            `json:"updated"`
	Skipped      map[string]int `json:"skipped,omitempty"`
	RowsAffected int64          `json:"rows_affected"`
	CapReached   bool           `json:"cap_reached,omitempty"`
	Error        string         `json:"error,omitempty"`
}

type runSummary struct {
	Status       string              `json:"status"`
	RunID        string              `json:"run_id"`
	Command      string              `json:"command"`
	DurationMS   int64               `json:"duration_ms"`
	Inventory    geography.Inventory `json:"inventory"`
	Phases       []phaseSummary      `json:"phases"`
	ManifestPath string              `json:"manifest_path,omitempty"`
	Error        string              `json:"error,omitempty"`
}

func summarizePhases(report *services.RunReport) []phaseSummary {
	out := make([]phaseSummary, 0, len(report.Phases))
	for _, p := range report.Phases {
		s := phaseSummary{
			Phase:        string(p.Phase),
			Created:      p.Created,
			Updated:      p.Updated,
			RowsAffected: p.RowsAffected,
			CapReached:   p.CapReached,
		}
		if len(p.Skipped) > 0 {
			s.Skipped = make(map[string]int, len(p.Skipped))
			for reason, n := range p.Skipped {
				s.Skipped[string(reason)] = n
			}
		}
		if p.Err != nil {
			s.Error = p.Err.Error()
		}
		out = append(out, s)
	}
	return out
}

func newRunSummary(command string, report *services.RunReport, manifestPath string) runSummary {
	s := runSummary{
		Status:       string(report.Status()),
		RunID:        report.RunID.String(),
		Command:      command,
		DurationMS:   report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
		Inventory:    report.Inventory,
		Phases:       summarizePhases(report),
		ManifestPath: manifestPath,
	}
	if report.Err != nil {
		s.Error = report.Err.Error()
	}
	return s
}

type runManifestV1 struct {
	Version    int                 `json:"version"`
	RunID      string              `json:"run_id"`
	Command    string              `json:"command"`
	Status     string              `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Inventory  geography.Inventory `json:"inventory"`
	Inserted   struct {
		Geographies []string `json:"geographies"`
		Links       []string `json:"links"`
	} `json:"inserted"`
	Updated struct {
		Geographies []string `json:"geographies"`
	} `json:"updated"`
	Phases []phaseSummary `json:"phases"`
}

func newRunManifest(command string, report *services.RunReport) *runManifestV1 {
	m := &runManifestV1{
		Version:    1,
		RunID:      report.RunID.String(),
		Command:    command,
		Status:     string(report.Status()),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Inventory:  report.Inventory,
		Phases:     summarizePhases(report),
	}
	m.Inserted.Geographies = []string{}
	m.Inserted.Links = []string{}
	m.Updated.Geographies = []string{}

	updated := map[string]struct{}{}
	for _, p := range report.Phases {
		for _, id := range p.CreatedIDs {
			if p.Phase == services.PhaseAssign {
				m.Inserted.Links = append(m.Inserted.Links, id.String())
				continue
			}
			m.Inserted.Geographies = append(m.Inserted.Geographies, id.String())
		}
		for _, id := range p.UpdatedIDs {
			updated[id.String()] = struct{}{}
		}
	}
	for id := range updated {
		m.Updated.Geographies = append(m.Updated.Geographies, id)
	}
	sort.Strings(m.Inserted.Geographies)
	sort.Strings(m.Inserted.Links)
	sort.Strings(m.Updated.Geographies)
	return m
}
