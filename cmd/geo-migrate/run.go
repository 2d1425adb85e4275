package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/geo-migrate/modules/geography/infrastructure/legacy"
	"github.com/iota-uz/geo-migrate/modules/geography/infrastructure/persistence"
	"github.com/iota-uz/geo-migrate/modules/geography/infrastructure/regions"
	"github.com/iota-uz/geo-migrate/modules/geography/services"
	"github.com/iota-uz/geo-migrate/pkg/configuration"
	"github.com/iota-uz/geo-migrate/pkg/logging"
)

const (
	commandRun    = "run"
	commandStates = "states"
	commandCheck  = "check"
)

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, opts runOptions, cfg *configuration.Configuration) error {
	flags := cmd.Flags()
	if flags.Changed("international-only") {
		cfg.Assignment.InternationalOnly = opts.internationalOnly
	}
	if flags.Changed("max-links") {
		if opts.maxLinks <= 0 {
			return withCode(exitUsage, fmt.Errorf("--max-links must be positive, got %d", opts.maxLinks))
		}
		cfg.Assignment.LinkInsertCap = opts.maxLinks
	}
	if flags.Changed("with-states") {
		cfg.StateVariant.Enabled = opts.withStates
	}
	if flags.Changed("manifest-dir") {
		cfg.ManifestDir = opts.manifestDir
	}
	return nil
}

func serviceOptions(cfg *configuration.Configuration) services.Options {
	return services.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		CityPolicy:     services.CityPolicy(cfg.CityPolicy),
		RunStates:      cfg.StateVariant.Enabled,
		States: services.StateVariantConfig{
			RootKey:     cfg.StateVariant.RootKey,
			CountryName: cfg.StateVariant.CountryName,
			CountryISO:  cfg.Assignment.TargetCountryISO,
		},
		Assignment: services.AssignmentConfig{
			Cap:                cfg.Assignment.LinkInsertCap,
			InternationalOnly:  cfg.Assignment.InternationalOnly,
			DomesticCountryISO: cfg.Assignment.TargetCountryISO,
		},
	}
}

func runCommand(cmd *cobra.Command, command string, opts runOptions) error {
	cfg, err := configuration.Load(opts.envFiles)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if err := applyFlags(cmd, opts, cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Logger().WithField("command", command)
	ctx = logging.WithLogger(ctx, logger)
	logger.WithFields(logrus.Fields{
		"legacy": configuration.RedactURL(cfg.LegacyDatabaseURL),
		"target": configuration.RedactURL(cfg.TargetDatabaseURL),
	}).Info("connecting")

	legacyDB, err := legacy.Open(cfg.LegacyDatabaseURL)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer func() { _ = legacyDB.Close() }()

	pool, err := persistence.NewPool(ctx, cfg.TargetDatabaseURL)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer pool.Close()

	svc := services.NewMigrationService(
		legacy.NewReader(legacyDB),
		persistence.NewGateway(pool),
		regions.NewCountryResolver(),
		regions.NewStateTable(),
		serviceOptions(cfg),
	)

	var report *services.RunReport
	switch command {
	case commandStates:
		report = svc.RunStates(ctx)
	case commandCheck:
		report = svc.Check(ctx)
	default:
		report = svc.Run(ctx)
	}

	return finishCommand(ctx, cmd, command, cfg, report)
}

func finishCommand(ctx context.Context, cmd *cobra.Command, command string, cfg *configuration.Configuration, report *services.RunReport) error {
	logger := logging.FromContext(ctx)

	var manifestPath string
	if cfg.ManifestDir != "" && command != commandCheck {
		path, err := writeManifest(cfg.ManifestDir, newRunManifest(command, report))
		if err != nil {
			logger.WithError(err).Error("write manifest failed")
		} else {
			manifestPath = path
		}
	}
	if cfg.MetricsTextfile != "" {
		if err := writeMetricsTextfile(cfg.MetricsTextfile); err != nil {
			logger.WithError(err).Error("write metrics textfile failed")
		}
	}

	if err := writeJSONLine(cmd.OutOrStdout(), newRunSummary(command, report, manifestPath)); err != nil {
		return err
	}
	return reportError(report)
}
