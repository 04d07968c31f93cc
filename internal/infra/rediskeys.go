package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "zkspend"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanPolicyInvalidate: payload "<ens-имя>" сбрасывает одну запись, "*" весь кэш.
	RedisChanPolicyInvalidate = RedisNamespace + ":policies:invalidate"
)

// PolicyCacheKey Генератор ключей L2-кэша политик
func PolicyCacheKey(name string) string {
	return fmt.Sprintf("%s:policy:%s", RedisNamespace, name)
}

// RedisKeyPolicyWarmupLock: SetNX-блокировка прогрева, ENS при старте дергает один инстанс
const RedisKeyPolicyWarmupLock = RedisNamespace + ":policies:warmup_lock"
