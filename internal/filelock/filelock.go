// Package filelock provides advisory file locks with platform-specific
// backends. The backend is chosen once at startup; a store running without
// locks does so because it was configured that way, never silently.
package filelock

import (
	"errors"
	"fmt"
	"os"
)

// ErrLocked is returned when a non-blocking lock attempt finds the file held
// by another process.
var ErrLocked = errors.New("file is locked")

// Locker acquires and releases advisory locks on open files. Lock never
// blocks: callers own the retry policy.
type Locker interface {
	Lock(f *os.File, exclusive bool) error
	Unlock(f *os.File) error
	Name() string
}

// Mode selects a Locker implementation.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeNone Mode = "none"
)

// New returns the Locker for mode. ModeAuto picks the platform backend, which
// itself falls back to None on platforms without lock primitives.
func New(mode Mode) (Locker, error) {
	switch mode {
	case ModeAuto, "":
		return platformLocker(), nil
	case ModeNone:
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown lock mode %q", mode)
	}
}

// None performs no locking. Writes still go through temp file and rename.
type None struct{}

func (None) Lock(*os.File, bool) error { return nil }
func (None) Unlock(*os.File) error     { return nil }
func (None) Name() string              { return "none" }
