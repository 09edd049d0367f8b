package callgraph

import "errors"

// Sentinel errors returned by Cache and Watcher.
var (
	// ErrInvalidArgument is returned for caller-supplied arguments that
	// cannot be satisfied (empty project path, nil graph).
	ErrInvalidArgument = errors.New("callgraph: invalid argument")

	// ErrWatcherClosed is returned by Watch after the watcher has been
	// closed.
	ErrWatcherClosed = errors.New("callgraph: watcher closed")
)
