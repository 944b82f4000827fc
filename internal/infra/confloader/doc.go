// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Defaults already present in the target struct
//  2. A YAML file
//  3. Environment variables (MESHBUS_ prefix)
//  4. An explicit map, typically built from command-line flags
//
// Environment names are matched against the koanf tags of the target, so
// MESHBUS_REDIS_POOL_MAX_TOTAL resolves to redis.pool.max_total even though
// the key itself contains an underscore.
//
// Watcher reports writes to a watched file so callers can re-apply the
// settings that are safe to change at runtime.
package confloader
