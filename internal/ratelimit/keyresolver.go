package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Strategy selects how the attempt-policy key is derived.
type Strategy string

const (
	// StrategyIP buckets attempts by caller IP alone.
	StrategyIP Strategy = "IP"
	// StrategyIPUser buckets attempts by caller IP combined with the
	// attempted username, so a single bad actor can't lock out other
	// users sharing the same address.
	StrategyIPUser Strategy = "IP_USER"
)

// KeyResolver derives the attempt-policy key for a login attempt.
type KeyResolver struct {
	strategy Strategy
}

// NewKeyResolver builds a KeyResolver for the given strategy.
func NewKeyResolver(strategy Strategy) *KeyResolver {
	return &KeyResolver{strategy: strategy}
}

// Key derives the bucket key for ip and the attempted username.
// Usernames are lowercased and hashed so the raw value never appears in
// store keys: IP_USER yields ratelimit:ipuser:{ip}:{sha256(username)},
// any other strategy ratelimit:ip:{ip}.
func (k *KeyResolver) Key(ip, username string) string {
	switch k.strategy {
	case StrategyIPUser:
		return "ratelimit:ipuser:" + ip + ":" + hashUsername(strings.ToLower(username))
	default:
		return "ratelimit:ip:" + ip
	}
}

func hashUsername(username string) string {
	sum := sha256.Sum256([]byte(username))
	return hex.EncodeToString(sum[:])
}
