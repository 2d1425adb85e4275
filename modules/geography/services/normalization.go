package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

// NormalizationService clears geo_city on every geography that carries one.
type NormalizationService struct {
	target geography.CityNormalizer
}

func NewNormalizationService(target geography.CityNormalizer) *NormalizationService {
	return &NormalizationService{target: target}
}

func (s *NormalizationService) ClearCities(ctx context.Context) *PhaseReport {
	report := newPhaseReport(PhaseNormalize)
	defer func() { logPhaseSummary(ctx, report) }()

	rows, err := s.target.ListWithCity(ctx)
	if err != nil {
		report.fail(err)
		return report.finish()
	}
	if len(rows) == 0 {
		return report.finish()
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, g := range rows {
		ids = append(ids, g.ID)
	}
	affected, err := s.target.ClearCity(ctx, ids)
	if err != nil {
		for range ids {
			report.skipped(SkipUpdateFailed)
		}
		report.fail(err)
		return report.finish()
	}
	report.RowsAffected = affected
	for _, id := range ids {
		report.updated(id)
	}
	return report.finish()
}
