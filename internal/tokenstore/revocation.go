package tokenstore

import (
	"context"
)

const revokedPrefix = "revoked:"

// RevocationStore records session tokens that were explicitly invalidated
// before their natural expiry. A revoked token stays revoked for as long as
// the backing store keeps it: forever in Redis, the process lifetime in
// memory. Entries are never evicted, so the set grows with every logout.
type RevocationStore struct {
	store Store
}

// NewRevocationStore creates a revocation set on top of store.
func NewRevocationStore(store Store) *RevocationStore {
	return &RevocationStore{store: store}
}

// Revoke marks the token as revoked. Revoking twice is a no-op.
func (r *RevocationStore) Revoke(ctx context.Context, raw string) error {
	return r.store.Put(ctx, hashKey(revokedPrefix, raw), "1", 0)
}

// IsRevoked reports whether the token has been revoked.
func (r *RevocationStore) IsRevoked(ctx context.Context, raw string) (bool, error) {
	_, ok, err := r.store.Get(ctx, hashKey(revokedPrefix, raw))
	return ok, err
}
