package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimPrefix = "jobcrawler:claim:"

// releaseScript deletes a claim only if this process still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ClaimRepoImpl provides a concrete implementation for the ClaimRepository interface using Redis.
type ClaimRepoImpl struct {
	client redis.UniversalClient
	owner  string
}

// NewClaimRepo creates a new instance of ClaimRepoImpl. owner identifies
// this process in claim values.
func NewClaimRepo(client redis.UniversalClient, owner string) *ClaimRepoImpl {
	return &ClaimRepoImpl{client: client, owner: owner}
}

// generateKey creates a consistent Redis key for a fingerprint.
func (r *ClaimRepoImpl) generateKey(fingerprint string) string {
	return fmt.Sprintf("%s%s", claimPrefix, fingerprint)
}

// Claim takes the fingerprint for ttl. SETNX is atomic, so at most one
// process wins.
func (r *ClaimRepoImpl) Claim(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.generateKey(fingerprint), r.owner, ttl).Result()
}

// Release drops the claim if it is still ours.
func (r *ClaimRepoImpl) Release(ctx context.Context, fingerprint string) error {
	return releaseScript.Run(ctx, r.client, []string{r.generateKey(fingerprint)}, r.owner).Err()
}

// Ping checks the connection to Redis.
func (r *ClaimRepoImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
