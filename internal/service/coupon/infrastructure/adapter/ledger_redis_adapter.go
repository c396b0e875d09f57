package adapter

import (
	"context"
	"fmt"
	"strconv"

	"coupon-core/internal/pkg/redis"
	"coupon-core/internal/service/coupon/domain/port"
)

const (
	issueScriptName  = "coupon_issue"
	revokeScriptName = "coupon_revoke"
)

// LedgerRedisAdapter 是 port.Ledger 接口的 Redis 实现。
// 两个 key 使用相同的 hash tag，集群模式下落在同一个 slot，脚本可以同时访问。
type LedgerRedisAdapter struct {
	redisClient *redis.Client
}

// NewLedgerRedisAdapter 创建适配器，并在创建时加载所需的 Lua 脚本
func NewLedgerRedisAdapter(redisClient *redis.Client) (*LedgerRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(issueScriptName, issueScript); err != nil {
		return nil, fmt.Errorf("failed to load coupon issue script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(revokeScriptName, revokeScript); err != nil {
		return nil, fmt.Errorf("failed to load coupon revoke script: %w", err)
	}
	return &LedgerRedisAdapter{redisClient: redisClient}, nil
}

func stockKey(couponID int64) string {
	return fmt.Sprintf("coupon:stock:{%d}", couponID)
}

func usersKey(couponID int64) string {
	return fmt.Sprintf("coupon:users:{%d}", couponID)
}

// TryIssue 实现 port.Ledger
func (a *LedgerRedisAdapter) TryIssue(ctx context.Context, couponID, userID int64) (port.LedgerResult, error) {
	keys := []string{stockKey(couponID), usersKey(couponID)}
	result, err := a.redisClient.RunScript(ctx, issueScriptName, keys, userID)
	if err != nil {
		return 0, fmt.Errorf("ledger failed to run issue script: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from issue script: %T", result)
	}
	switch code {
	case 1:
		return port.LedgerSuccess, nil
	case 0:
		return port.LedgerSoldOut, nil
	case 2:
		return port.LedgerAlreadyIssued, nil
	default:
		return 0, fmt.Errorf("unknown result code from issue script: %d", code)
	}
}

// Revoke 实现 port.Ledger
func (a *LedgerRedisAdapter) Revoke(ctx context.Context, couponID, userID int64) (bool, error) {
	keys := []string{stockKey(couponID), usersKey(couponID)}
	result, err := a.redisClient.RunScript(ctx, revokeScriptName, keys, userID)
	if err != nil {
		return false, fmt.Errorf("ledger failed to run revoke script: %w", err)
	}
	code, _ := result.(int64)
	return code == 1, nil
}

// Prepare 实现 port.Ledger
func (a *LedgerRedisAdapter) Prepare(ctx context.Context, couponID, stock int64) error {
	pipe := a.redisClient.GetClient().TxPipeline()
	pipe.Set(ctx, stockKey(couponID), stock, 0)
	pipe.Del(ctx, usersKey(couponID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prepare coupon %d: %w", couponID, err)
	}
	return nil
}

// Seed 实现 port.Ledger
func (a *LedgerRedisAdapter) Seed(ctx context.Context, couponID, remaining int64, userIDs []int64) error {
	pipe := a.redisClient.GetClient().TxPipeline()
	pipe.Set(ctx, stockKey(couponID), max(remaining, 0), 0)
	pipe.Del(ctx, usersKey(couponID))
	if len(userIDs) > 0 {
		members := make([]interface{}, len(userIDs))
		for i, id := range userIDs {
			members[i] = strconv.FormatInt(id, 10)
		}
		pipe.SAdd(ctx, usersKey(couponID), members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed coupon %d: %w", couponID, err)
	}
	return nil
}

// Remaining 实现 port.Ledger
func (a *LedgerRedisAdapter) Remaining(ctx context.Context, couponID int64) (int64, error) {
	n, err := a.redisClient.GetClient().Get(ctx, stockKey(couponID)).Int64()
	if err != nil {
		if redis.IsNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read coupon %d stock: %w", couponID, err)
	}
	return n, nil
}

// KEYS[1]: 库存计数，例如 coupon:stock:{42}
// KEYS[2]: 已领用户集合，例如 coupon:users:{42}
// ARGV[1]: 用户 ID
// 返回 1 成功，0 已领完，2 重复领取
var issueScript = `
if redis.call('sadd', KEYS[2], ARGV[1]) == 0 then
    return 2
end

local stock = tonumber(redis.call('get', KEYS[1]))
if not stock or stock <= 0 then
    redis.call('srem', KEYS[2], ARGV[1])
    return 0
end

if redis.call('decr', KEYS[1]) < 0 then
    redis.call('incr', KEYS[1])
    redis.call('srem', KEYS[2], ARGV[1])
    return 0
end

return 1
`

// 用户在集合中时才归还库存，保证同一用户最多归还一次
var revokeScript = `
if redis.call('srem', KEYS[2], ARGV[1]) == 1 then
    redis.call('incr', KEYS[1])
    return 1
end
return 0
`
