package reference

import (
	"context"
)

// Repository is a key-value cache for opaque reference blobs (employees,
// work descriptions, item catalogs) and small device-scoped values.
type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	// ClearExcept removes every key not listed in keep.
	ClearExcept(ctx context.Context, keep ...string) error
}
