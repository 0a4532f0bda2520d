// Package objstore abstracts the object-storage collaborator the ingestion
// worker discovers uploads from. The core depends only on list/get.
package objstore

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// ErrNotFound is returned by Get for a key that does not exist.
var ErrNotFound = goerr.New("object not found")

// ObjectStorage lists keys under a prefix and fetches raw payload bytes.
type ObjectStorage interface {
	// List returns all keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Get returns the raw bytes stored at key.
	Get(ctx context.Context, key string) ([]byte, error)
}
