package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
	"github.com/iota-uz/geo-migrate/pkg/logging"
)

type CityPolicy string

const (
	// CityPolicyNull keeps geo_city empty and runs the normalization pass.
	CityPolicyNull CityPolicy = "null"
	// CityPolicyRegion lets the state variant write the region text into
	// geo_city; normalization is skipped.
	CityPolicyRegion CityPolicy = "region"
)

const DefaultConnectTimeout = 10 * time.Second

type Options struct {
	ConnectTimeout time.Duration
	CityPolicy     CityPolicy
	// RunStates appends the state variant to a full run.
	RunStates  bool
	States     StateVariantConfig
	Assignment AssignmentConfig
}

// MigrationService sequences the passes of a run against one legacy and one
// target store.
type MigrationService struct {
	legacy geography.LegacyStore
	target geography.TargetStore
	opts   Options

	reconcile *ReconciliationService
	normalize *NormalizationService
	states    *StateVariantService
	assign    *AssignmentService
}

func NewMigrationService(
	legacy geography.LegacyStore,
	target geography.TargetStore,
	countries geography.CountryResolver,
	stateCodes geography.StateCodeLookup,
	opts Options,
) *MigrationService {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.CityPolicy == "" {
		opts.CityPolicy = CityPolicyNull
	}
	opts.States.WriteCity = opts.CityPolicy == CityPolicyRegion

	return &MigrationService{
		legacy:    legacy,
		target:    target,
		opts:      opts,
		reconcile: NewReconciliationService(target, countries),
		normalize: NewNormalizationService(target),
		states:    NewStateVariantService(target, stateCodes, opts.States),
		assign:    NewAssignmentService(target, target, target, opts.Assignment),
	}
}

// CheckConnection pings both stores under ConnectTimeout and reads the legacy
// inventory. Only an unreachable store is an error.
func (s *MigrationService) CheckConnection(ctx context.Context) (geography.Inventory, error) {
	pingCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	if err := s.legacy.Ping(pingCtx); err != nil {
		return geography.Inventory{}, errors.Wrapf(geography.ErrStoreUnreachable, "legacy: %v", err)
	}
	if err := s.target.Ping(pingCtx); err != nil {
		return geography.Inventory{}, errors.Wrapf(geography.ErrStoreUnreachable, "target: %v", err)
	}

	inv, err := s.legacy.Inventory(ctx)
	if err != nil {
		logWithFields(ctx, logrus.WarnLevel, "legacy inventory unavailable", logrus.Fields{"error": err.Error()})
		return geography.Inventory{}, nil
	}
	logWithFields(ctx, logrus.InfoLevel, "connected", logrus.Fields{
		"sites":               inv.Sites,
		"site_locations":      inv.SiteLocations,
		"site_location_items": inv.SiteLocationItems,
	})
	return inv, nil
}

// Check runs the connectivity precondition alone.
func (s *MigrationService) Check(ctx context.Context) *RunReport {
	report := newRunReport()
	ctx = withRunLogger(ctx, report)

	inv, err := s.CheckConnection(ctx)
	report.Inventory = inv
	report.Err = err
	return finishRun(ctx, report)
}

// Run executes roots, children, the optional state variant, city
// normalization and assignment in that order. Phase failures are recorded and
// the run moves on; only an unreachable store or a missing state root abort.
func (s *MigrationService) Run(ctx context.Context) *RunReport {
	report := newRunReport()
	ctx = withRunLogger(ctx, report)

	inv, err := s.CheckConnection(ctx)
	report.Inventory = inv
	if err != nil {
		report.Err = err
		return finishRun(ctx, report)
	}

	nodes, err := s.legacy.ListNodes(ctx)
	if err != nil {
		failed := newPhaseReport(PhaseRoots)
		failed.fail(err)
		logPhaseSummary(ctx, failed)
		report.add(failed.finish())
	} else {
		roots, keys := s.reconcile.ReconcileRoots(ctx, nodes, geography.NewKeySet())
		report.add(roots)
		children, _ := s.reconcile.ReconcileChildren(ctx, nodes, keys)
		report.add(children)

		if s.opts.RunStates {
			states, err := s.states.Run(ctx, nodes)
			report.add(states)
			if err != nil {
				report.Err = err
				return finishRun(ctx, report)
			}
		}
	}

	if s.opts.CityPolicy == CityPolicyNull {
		report.add(s.normalize.ClearCities(ctx))
	}
	report.add(s.assign.Assign(ctx))
	return finishRun(ctx, report)
}

// RunStates executes only the state variant.
func (s *MigrationService) RunStates(ctx context.Context) *RunReport {
	report := newRunReport()
	ctx = withRunLogger(ctx, report)

	inv, err := s.CheckConnection(ctx)
	report.Inventory = inv
	if err != nil {
		report.Err = err
		return finishRun(ctx, report)
	}

	nodes, err := s.legacy.ListNodes(ctx)
	if err != nil {
		failed := newPhaseReport(PhaseStates)
		failed.fail(err)
		logPhaseSummary(ctx, failed)
		report.add(failed.finish())
		return finishRun(ctx, report)
	}
	states, err := s.states.Run(ctx, nodes)
	report.add(states)
	report.Err = err
	return finishRun(ctx, report)
}

func withRunLogger(ctx context.Context, report *RunReport) context.Context {
	logger := logging.FromContext(ctx)
	if logger == nil {
		return ctx
	}
	return logging.WithLogger(ctx, logger.WithField("run_id", report.RunID.String()))
}

func finishRun(ctx context.Context, report *RunReport) *RunReport {
	report.FinishedAt = time.Now().UTC()
	fields := logrus.Fields{
		"status":      report.Status(),
		"duration_ms": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}
	if report.Err != nil {
		fields["error"] = report.Err.Error()
		logWithFields(ctx, logrus.ErrorLevel, "run aborted", fields)
		return report
	}
	logWithFields(ctx, logrus.InfoLevel, "run finished", fields)
	return report
}
