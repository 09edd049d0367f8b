package traversal

import "errors"

// ErrInvalidArgument is returned for caller-supplied arguments that
// cannot be satisfied (nil graph, empty starting id).
var ErrInvalidArgument = errors.New("traversal: invalid argument")
