package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSet     = "presence:online"
	presenceConnKeyPrefix = "presence:connections:"
)

// Both scripts keep the per-user connection hash and the online set in step.
var connectScript = goredis.NewScript(`
	local added = redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	redis.call('EXPIRE', KEYS[1], ARGV[3])
	redis.call('SADD', KEYS[2], ARGV[4])
	if added == 1 and redis.call('HLEN', KEYS[1]) == 1 then
		return 1
	end
	return 0
`)

var disconnectScript = goredis.NewScript(`
	local removed = redis.call('HDEL', KEYS[1], ARGV[1])
	if removed == 0 then
		return 0
	end
	if redis.call('HLEN', KEYS[1]) == 0 then
		redis.call('SREM', KEYS[2], ARGV[2])
		return 1
	end
	return 0
`)

// PresenceStore tracks live websocket connections per user across every API
// instance sharing the redis server.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &PresenceStore{client: client, ttl: ttl}
}

// Connect records connID and reports whether it is the user's first.
func (p *PresenceStore) Connect(ctx context.Context, userID, connID string) (bool, error) {
	res, err := connectScript.Run(ctx, p.client,
		[]string{connectionsKey(userID), presenceOnlineSet},
		connID, time.Now().UTC().Format(time.RFC3339), int(p.ttl.Seconds()), userID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("presence connect: %w", err)
	}
	return res == 1, nil
}

// Disconnect drops connID and reports whether it was the user's last.
func (p *PresenceStore) Disconnect(ctx context.Context, userID, connID string) (bool, error) {
	res, err := disconnectScript.Run(ctx, p.client,
		[]string{connectionsKey(userID), presenceOnlineSet},
		connID, userID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("presence disconnect: %w", err)
	}
	return res == 1, nil
}

func (p *PresenceStore) OnlineUsers(ctx context.Context) ([]string, error) {
	ids, err := p.client.SMembers(ctx, presenceOnlineSet).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID).Result()
}

// Connections lists the live connection ids of a user.
func (p *PresenceStore) Connections(ctx context.Context, userID string) ([]string, error) {
	return p.client.HKeys(ctx, connectionsKey(userID)).Result()
}

func connectionsKey(userID string) string {
	return presenceConnKeyPrefix + userID
}
