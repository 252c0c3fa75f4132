// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mlforge/mlforge/pkg/forgefile"
)

var (
	// ErrLockNotFound indicates no lock file exists; the project has not
	// been pinned.
	ErrLockNotFound = errors.New("lock file not found")

	// ErrLockInvalid indicates the lock file exists but cannot be used:
	// unparseable TOML, missing fields, or a malformed digest.
	ErrLockInvalid = errors.New("invalid lock file")

	// ErrLockStale indicates the lock was pinned from a different base
	// reference than the one currently selected, so its digest no longer
	// describes what the project declares.
	ErrLockStale = errors.New("lock file is stale")
)

type (
	// Lock records the digest a floating base reference resolved to at
	// pin time. Committed alongside the forgefile, it keeps builds on
	// the same base until the next explicit pin.
	Lock struct {
		Base LockedBase `toml:"base"`
	}

	// LockedBase is the pinned base image record.
	LockedBase struct {
		// Ref is the floating reference the digest was resolved from.
		Ref string `toml:"ref"`
		// Digest is the immutable manifest digest.
		Digest forgefile.ImageDigest `toml:"digest"`
		// PinnedAt is when the resolution happened, in UTC.
		PinnedAt time.Time `toml:"pinned_at"`
	}
)

// NewLock builds a lock record for a resolved reference.
func NewLock(ref string, digest forgefile.ImageDigest, pinnedAt time.Time) *Lock {
	return &Lock{
		Base: LockedBase{
			Ref:      ref,
			Digest:   digest,
			PinnedAt: pinnedAt.UTC(),
		},
	}
}

// LockPath returns the lock file location for a project directory.
func LockPath(dir string) string {
	return filepath.Join(dir, forgefile.DefaultLockName)
}

// ReadLock loads and validates the lock file at path.
func ReadLock(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLockNotFound, path)
		}
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}

	var lock Lock
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockInvalid, err)
	}
	if err := lock.Validate(); err != nil {
		return nil, err
	}
	return &lock, nil
}

// Validate checks the lock carries a usable pin.
func (l *Lock) Validate() error {
	if l.Base.Ref == "" {
		return fmt.Errorf("%w: missing base ref", ErrLockInvalid)
	}
	if l.Base.Digest == "" {
		return fmt.Errorf("%w: missing digest", ErrLockInvalid)
	}
	if err := l.Base.Digest.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrLockInvalid, err)
	}
	return nil
}

// Write marshals the lock to path, replacing any previous pin.
func (l *Lock) Write(path string) error {
	if err := l.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal lock file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

// DigestFor returns the pinned digest when the lock was taken from ref.
// A lock taken from any other reference is stale: the base selection
// changed after the pin, and applying the old digest would build from
// something the project no longer declares.
func (l *Lock) DigestFor(ref string) (forgefile.ImageDigest, error) {
	if l.Base.Ref != ref {
		return "", fmt.Errorf("%w: pinned from %s, current base is %s", ErrLockStale, l.Base.Ref, ref)
	}
	return l.Base.Digest, nil
}
