package main

import (
	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
	"github.com/iota-uz/geo-migrate/modules/geography/services"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK          = 0
	exitPartial     = 2
	exitUsage       = 3
	exitDB          = 4
	exitMissingRoot = 5
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if ok := as(err, &ce); ok {
		return ce.code
	}
	return 1
}

// reportError turns a finished run into the error Execute exits with.
func reportError(report *services.RunReport) error {
	switch report.Status() {
	case services.StatusSucceeded:
		return nil
	case services.StatusPartial:
		return withCode(exitPartial, errPartialRun)
	}
	switch {
	case is(report.Err, geography.ErrStoreUnreachable):
		return withCode(exitDB, report.Err)
	case is(report.Err, geography.ErrRequiredRootMissing):
		return withCode(exitMissingRoot, report.Err)
	default:
		return report.Err
	}
}
