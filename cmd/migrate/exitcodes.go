package main

import (
	"errors"

	"github.com/shipos/shipos/modules/migration/services"
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
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitDBWrite    = 5
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
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// classify assigns an exit code to an error returned by the migration service.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return err
	}
	var runErr *services.RunError
	switch {
	case errors.Is(err, services.ErrUnknownPreset):
		return withCode(exitUsage, err)
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrParse),
		errors.Is(err, services.ErrNoValidRows):
		return withCode(exitValidation, err)
	case errors.As(err, &runErr):
		return withCode(exitDBWrite, err)
	default:
		return withCode(exitDB, err)
	}
}
