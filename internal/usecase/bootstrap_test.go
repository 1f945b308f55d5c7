package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"go.uber.org/zap"

	"github.com/user/jobcrawler/internal/checksum"
	"github.com/user/jobcrawler/mocks"
	"github.com/user/jobcrawler/pkg/retry"
)

type countingConnector struct {
	calls int
	err   error
}

func (c *countingConnector) Connect(ctx context.Context) error {
	c.calls++
	return c.err
}

func TestBootstrapRetriesUntilSchemaIsReady(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockListingRepository(ctrl)
	gomock.InOrder(
		store.EXPECT().EnsureSchema(gomock.Any()).Return(errors.New("relation locked")),
		store.EXPECT().EnsureSchema(gomock.Any()).Return(nil),
		store.EXPECT().ListAllChecksums(gomock.Any()).Return(map[string]struct{}{"fp-1": {}, "fp-2": {}}, nil),
	)
	conn := &countingConnector{}
	cache := checksum.New(store, nil)

	err := Bootstrap(context.Background(), conn, store, cache, retry.Policy{MaxAttempts: 3}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if conn.calls != 2 {
		t.Fatalf("expected connect on every attempt, got %d", conn.calls)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected a warm cache with 2 fingerprints, got %d", cache.Len())
	}
}

func TestBootstrapContinuesWithoutWarmCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockListingRepository(ctrl)
	store.EXPECT().EnsureSchema(gomock.Any()).Return(nil)
	store.EXPECT().ListAllChecksums(gomock.Any()).Return(nil, errors.New("statement timeout"))
	store.EXPECT().ChecksumExists(gomock.Any(), "fp").Return(true, nil)
	cache := checksum.New(store, nil)

	if err := Bootstrap(context.Background(), nil, store, cache, retry.Policy{MaxAttempts: 1}, zap.NewNop(), nil); err != nil {
		t.Fatalf("a failed bulk load must not fail bootstrap: %v", err)
	}
	known, err := cache.Has(context.Background(), "fp")
	if err != nil || !known {
		t.Fatalf("expected a per-fingerprint lookup, got %v %v", known, err)
	}
}

func TestBootstrapGivesUpAfterPolicyBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockListingRepository(ctrl)
	store.EXPECT().EnsureSchema(gomock.Any()).Times(0)
	store.EXPECT().ListAllChecksums(gomock.Any()).Times(0)
	down := errors.New("connection refused")
	conn := &countingConnector{err: down}

	err := Bootstrap(context.Background(), conn, store, checksum.New(store, nil), retry.Policy{MaxAttempts: 2}, zap.NewNop(), nil)
	if !errors.Is(err, down) {
		t.Fatalf("expected the connect error, got %v", err)
	}
	if conn.calls != 2 {
		t.Fatalf("expected 2 connect attempts, got %d", conn.calls)
	}
}
