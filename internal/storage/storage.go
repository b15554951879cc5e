package storage

import (
	"errors"

	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

// ErrNotFound is returned by stores when a pipeline id is unknown.
var ErrNotFound = errors.New("run not found")

// RunStore is the persistence contract for pipeline runs. Backends live in
// the memory and sqlite subpackages.
type RunStore = ports.RunStore
