package domain

import (
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

// Error kinds surfaced by a build. Match them with errors.Is.
var (
	// ErrUnresolvableSpecifier is returned when an import specifier cannot be turned into a module identity.
	ErrUnresolvableSpecifier = zerr.New("unresolvable import specifier")

	// ErrModuleNotFound is returned when a local module does not exist.
	ErrModuleNotFound = zerr.New("module not found")

	// ErrReadError is returned when a local module exists but cannot be read.
	ErrReadError = zerr.New("failed to read module")

	// ErrFetchError is returned when a remote module cannot be retrieved.
	ErrFetchError = zerr.New("failed to fetch remote module")

	// ErrFetchTimeout is returned when retrieving a remote module exceeds its deadline.
	ErrFetchTimeout = zerr.New("timed out fetching remote module")

	// ErrSyntaxIrregularity is returned when an import or export statement is malformed.
	ErrSyntaxIrregularity = zerr.New("irregular import/export statement")

	// ErrCyclicDependency is returned when the module graph contains a cycle.
	ErrCyclicDependency = zerr.New("cyclic dependency")

	// ErrModuleKeyCollision is returned when two module identities map to the same emitted key.
	ErrModuleKeyCollision = zerr.New("module key collision")

	// ErrMissingExport is returned when an import names an export its target module does not provide.
	ErrMissingExport = zerr.New("imported name is not exported")

	// ErrIncompleteGraph is returned when an edge points at a module missing from the graph.
	ErrIncompleteGraph = zerr.New("dependency graph is incomplete")

	// ErrDuplicateModule is returned when a module is added to a graph twice.
	ErrDuplicateModule = zerr.New("module already exists in graph")

	// ErrInvalidEntry is returned when the entry argument is empty or cannot be resolved.
	ErrInvalidEntry = zerr.New("invalid entry module")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigInvalid is returned when the config file contains an invalid value.
	ErrConfigInvalid = zerr.New("invalid config value")

	// ErrConfigNotFound is returned when no config file exists above the working directory.
	ErrConfigNotFound = zerr.New("could not find " + ConfigFileName)

	// ErrCacheCreateFailed is returned when the module cache directory cannot be created.
	ErrCacheCreateFailed = zerr.New("failed to create module cache directory")

	// ErrCacheReadFailed is returned when a cache entry cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read module cache entry")

	// ErrCacheWriteFailed is returned when a cache entry cannot be written.
	ErrCacheWriteFailed = zerr.New("failed to write module cache entry")

	// ErrCachePurgeFailed is returned when the cache cannot be emptied.
	ErrCachePurgeFailed = zerr.New("failed to purge module cache")

	// ErrOutputWriteFailed is returned when the bundle cannot be written to its destination.
	ErrOutputWriteFailed = zerr.New("failed to write bundle")

	// ErrOptimizerUnavailable is returned when the optimizer executable cannot be found.
	ErrOptimizerUnavailable = zerr.New("optimizer is not available")

	// ErrOptimizerFailed is returned when the optimizer exits unsuccessfully.
	ErrOptimizerFailed = zerr.New("optimizer failed")

	// ErrDoctorFailed is returned when a required environment check fails.
	ErrDoctorFailed = zerr.New("environment check failed")
)

// kindError tags an underlying cause with one of the kinds above.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

// Message returns the kind message without the cause chain.
func (e *kindError) Message() string {
	return e.kind.Error()
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

// NewError creates an error of the given kind wrapping cause (which may be nil)
// and attaches the key/value pairs in kv as zerr metadata.
func NewError(kind, cause error, kv ...any) error {
	var err error = &kindError{kind: kind, cause: cause}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		err = zerr.With(err, key, kv[i+1])
	}
	return err
}

// SyntaxError describes a malformed import or export statement.
type SyntaxError struct {
	Module ModuleID
	Line   int
	Column int
	Offset int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at %s:%d:%d: %s", ErrSyntaxIrregularity.Error(), e.Module, e.Line, e.Column, e.Reason)
}

// Is reports whether target is ErrSyntaxIrregularity.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntaxIrregularity
}

// CycleError describes a dependency cycle. Path starts and ends with the same module.
type CycleError struct {
	Path []ModuleID
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, id := range e.Path {
		names[i] = id.String()
	}
	return ErrCyclicDependency.Error() + ": " + strings.Join(names, " -> ")
}

// Is reports whether target is ErrCyclicDependency.
func (e *CycleError) Is(target error) bool {
	return target == ErrCyclicDependency
}
