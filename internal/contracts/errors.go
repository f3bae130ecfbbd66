package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoArtifacts is returned when a run finds no prediction artifacts at all
var ErrNoArtifacts = errors.New("no prediction artifacts found")

// SchemaError reports a required column concept that no alias matched.
// The affected file is skipped; other files continue.
type SchemaError struct {
	Path       string
	Concept    string
	Candidates []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in %s: no column for %q (tried %s)",
		e.Path, e.Concept, strings.Join(e.Candidates, ", "))
}

// FetchError reports a failed price batch; its symbols are dropped for the run
type FetchError struct {
	Symbols []string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("price fetch failed for %d symbols [%s]: %v",
		len(e.Symbols), abbreviate(e.Symbols, 5), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed warehouse append. Fatal for the run.
type PersistenceError struct {
	Table string
	Rows  int
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %d rows to %s: %v", e.Rows, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func abbreviate(items []string, max int) string {
	if len(items) <= max {
		return strings.Join(items, ",")
	}
	return fmt.Sprintf("%s,+%d more", strings.Join(items[:max], ","), len(items)-max)
}
