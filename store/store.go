// Package store persists serialized pipeline state. It is the external
// persistence collaborator of a fitted pipeline: the pipeline encodes its
// state to bytes and a Store keeps them under a key.
package store

import (
	"context"
	"strings"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// ErrStateNotFound is returned by Get when no state is stored under a key.
var ErrStateNotFound = errors.New("state not found")

// Store keeps serialized state under string keys.
type Store interface {
	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the data stored under key, or ErrStateNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// validateKey rejects keys that are empty or could escape a directory.
func validateKey(key string) error {
	if key == "" {
		return errors.NewValidationError("key", "must not be empty", key)
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return errors.NewValidationError("key", "must not contain path separators", key)
	}
	return nil
}
