package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

const (
	claimKeyPrefix = "claim:"
	claimIndexKey  = "claims"
)

// ClaimStore keeps session claims as JSON in a cache. Each session is a
// cache namespace; records and the session index share the session TTL.
type ClaimStore struct {
	cache domain.Cache
	index Index
	ttl   time.Duration
}

// NewClaimStore wraps a cache that also implements Index.
func NewClaimStore(c domain.Cache, ttl time.Duration) (*ClaimStore, error) {
	idx, ok := c.(Index)
	if !ok {
		return nil, fmt.Errorf("cache %T cannot index claims", c)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ClaimStore{cache: c, index: idx, ttl: ttl}, nil
}

// SaveClaim stores a claim and adds it to the session index.
func (s *ClaimStore) SaveClaim(ctx context.Context, sessionID string, claim *domain.ClaimRecord) error {
	if claim == nil || claim.ID == "" {
		return fmt.Errorf("%w: claim id is required", domain.ErrInvalidInput)
	}

	data, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to encode claim: %w", err)
	}
	if err := s.cache.Set(ctx, sessionID, claimKeyPrefix+claim.ID, data, s.ttl); err != nil {
		return err
	}
	score := float64(claim.CreatedAt.UnixMilli())
	return s.index.IndexAdd(ctx, sessionID, claimIndexKey, claim.ID, score, s.ttl)
}

// GetClaim returns domain.ErrClaimNotFound for unknown or expired claims.
func (s *ClaimStore) GetClaim(ctx context.Context, sessionID string, claimID string) (*domain.ClaimRecord, error) {
	data, err := s.cache.Get(ctx, sessionID, claimKeyPrefix+claimID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, domain.ErrClaimNotFound
	}

	var claim domain.ClaimRecord
	if err := json.Unmarshal(data, &claim); err != nil {
		return nil, fmt.Errorf("failed to decode claim %s: %w", claimID, err)
	}
	return &claim, nil
}

// ListClaims returns the session's claims, newest first. Index entries whose
// record has expired or been evicted are dropped.
func (s *ClaimStore) ListClaims(ctx context.Context, sessionID string) ([]*domain.ClaimRecord, error) {
	ids, err := s.index.IndexMembers(ctx, sessionID, claimIndexKey)
	if err != nil {
		return nil, err
	}

	claims := make([]*domain.ClaimRecord, 0, len(ids))
	for _, id := range ids {
		claim, err := s.GetClaim(ctx, sessionID, id)
		if errors.Is(err, domain.ErrClaimNotFound) {
			_ = s.index.IndexRemove(ctx, sessionID, claimIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

// DeleteClaim removes a claim. Deleting an unknown claim returns domain.ErrClaimNotFound.
func (s *ClaimStore) DeleteClaim(ctx context.Context, sessionID string, claimID string) error {
	data, err := s.cache.Get(ctx, sessionID, claimKeyPrefix+claimID)
	if err != nil {
		return err
	}
	if data == nil {
		return domain.ErrClaimNotFound
	}
	if err := s.cache.Delete(ctx, sessionID, claimKeyPrefix+claimID); err != nil {
		return err
	}
	return s.index.IndexRemove(ctx, sessionID, claimIndexKey, claimID)
}

// Ping checks the underlying cache.
func (s *ClaimStore) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// Close is a no-op; the cache is owned by whoever created it.
func (s *ClaimStore) Close() error {
	return nil
}
