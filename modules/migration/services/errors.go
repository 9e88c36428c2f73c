package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrNoValidRows    = errors.New("no valid rows to migrate")
	ErrUnknownPreset  = errors.New("unknown preset")
	ErrParse          = errors.New("source could not be parsed")
	ErrInvalidRequest = errors.New("invalid migration request")
)

type UnknownPresetError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownPresetError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown preset %q", e.Name)
	}
	return fmt.Sprintf("unknown preset %q, did you mean %s?", e.Name, strings.Join(e.Suggestions, ", "))
}

func (e *UnknownPresetError) Is(target error) bool {
	return target == ErrUnknownPreset
}

// RunError is a run-fatal failure. MigrationID is uuid.Nil when the run
// record could not be created.
type RunError struct {
	MigrationID uuid.UUID
	Err         error
}

func (e *RunError) Error() string {
	if e.MigrationID == uuid.Nil {
		return "migration run failed: " + e.Err.Error()
	}
	return fmt.Sprintf("migration run %s failed: %s", e.MigrationID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// RequestError lists the request fields that failed validation.
type RequestError struct {
	Fields map[string]string
}

func (e *RequestError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid migration request: " + strings.Join(parts, "; ")
}

func (e *RequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
