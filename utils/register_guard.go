package utils

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	regCooldown   = map[string]time.Time{}
	regCooldownMu sync.Mutex
)

// RegistrationCooldownTry enforces a cooldown between registration attempts
// from one client IP. It returns false while the IP is cooling down.
// Redis errors fail open.
func RegistrationCooldownTry(ctx context.Context, ip string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		ok, err := rc.SetNX(ctx, "reg:cooldown:"+ip, "1", cooldown).Result()
		if err != nil {
			Logger.Warn("registration cooldown check failed", zap.String("ip", ip), zap.Error(err))
			return true
		}
		return ok
	}

	now := time.Now()
	regCooldownMu.Lock()
	defer regCooldownMu.Unlock()
	for k, until := range regCooldown {
		if now.After(until) {
			delete(regCooldown, k)
		}
	}
	if until, ok := regCooldown[ip]; ok && now.Before(until) {
		return false
	}
	regCooldown[ip] = now.Add(cooldown)
	return true
}

// RegistrationCooldownRelease clears the cooldown for ip, for attempts that
// did not end in a new account.
func RegistrationCooldownRelease(ctx context.Context, ip string) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		if err := rc.Del(ctx, "reg:cooldown:"+ip).Err(); err != nil {
			Logger.Warn("registration cooldown release failed", zap.String("ip", ip), zap.Error(err))
		}
		return
	}
	regCooldownMu.Lock()
	delete(regCooldown, ip)
	regCooldownMu.Unlock()
}
