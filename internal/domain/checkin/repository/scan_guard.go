package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "checkin:guard:"

// 只删除自己持有的锁：超时后锁可能已被其他请求重新获取
const releaseGuardScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// ScanGuard 同一张票的并发扫码在进入数据库前被拦下，最终一致性仍由数据库约束保证
type ScanGuard interface {
	// Acquire 成功时返回本次持有的令牌，释放时需原样带回
	Acquire(ctx context.Context, ticketID string) (token string, acquired bool, err error)
	Release(ctx context.Context, ticketID, token string) error
}

type redisScanGuard struct {
	client   *redis.Client
	ttl      time.Duration
	newToken func() string
}

func NewRedisScanGuard(client *redis.Client, ttl time.Duration) ScanGuard {
	return &redisScanGuard{client: client, ttl: ttl, newToken: uuid.NewString}
}

func GuardKey(ticketID string) string {
	return guardKeyPrefix + ticketID
}

func (g *redisScanGuard) Acquire(ctx context.Context, ticketID string) (string, bool, error) {
	token := g.newToken()
	ok, err := g.client.SetNX(ctx, GuardKey(ticketID), token, g.ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (g *redisScanGuard) Release(ctx context.Context, ticketID, token string) error {
	return g.client.Eval(ctx, releaseGuardScript, []string{GuardKey(ticketID)}, token).Err()
}
