package tokenstore

import (
	"context"
	"fmt"
	"time"
)

const resetPrefix = "reset:"

// ResetMinter issues signed reset tokens. Satisfied by *token.Codec.
type ResetMinter interface {
	IssueResetToken(email string) (string, error)
}

// ResetTokenStore maps live password-reset tokens to the email they were
// issued for. Each token can be redeemed at most once.
type ResetTokenStore struct {
	store  Store
	minter ResetMinter
	ttl    time.Duration
}

// NewResetTokenStore creates a reset mapping whose entries live for ttl,
// which should match the lifetime the minter puts in the token.
func NewResetTokenStore(store Store, minter ResetMinter, ttl time.Duration) *ResetTokenStore {
	return &ResetTokenStore{store: store, minter: minter, ttl: ttl}
}

// Issue mints a reset token for email and records it.
func (r *ResetTokenStore) Issue(ctx context.Context, email string) (string, error) {
	raw, err := r.minter.IssueResetToken(email)
	if err != nil {
		return "", fmt.Errorf("minting reset token: %w", err)
	}
	if err := r.store.Put(ctx, hashKey(resetPrefix, raw), email, r.ttl); err != nil {
		return "", fmt.Errorf("storing reset token: %w", err)
	}
	return raw, nil
}

// Redeem consumes the token and returns its email. A token that was never
// issued, has expired, or was already redeemed returns ErrNotFound.
func (r *ResetTokenStore) Redeem(ctx context.Context, raw string) (string, error) {
	email, ok, err := r.store.Take(ctx, hashKey(resetPrefix, raw))
	if err != nil {
		return "", fmt.Errorf("redeeming reset token: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	return email, nil
}

// Discard drops a token without redeeming it.
func (r *ResetTokenStore) Discard(ctx context.Context, raw string) error {
	_, _, err := r.store.Take(ctx, hashKey(resetPrefix, raw))
	return err
}

// Restore puts a redeemed token back, for when the write that should have
// followed redemption failed. ttl is the token's remaining lifetime.
func (r *ResetTokenStore) Restore(ctx context.Context, raw, email string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.store.Put(ctx, hashKey(resetPrefix, raw), email, ttl)
}
