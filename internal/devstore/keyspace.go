package devstore

import (
	"errors"
	"sync"
	"time"

	"github.com/yndnr/meshbus-go/pkg/cmap"
)

// ErrWrongType mirrors the store error for type mismatches.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

type entryKind uint8

const (
	kindString entryKind = iota
	kindHash
)

type entry struct {
	kind      entryKind
	str       string
	hash      map[string]string
	expiresAt int64 // unix ms, 0 = persistent
}

func (e *entry) expired(nowMs int64) bool {
	return e.expiresAt != 0 && e.expiresAt <= nowMs
}

// Keyspace holds numbered databases of string and hash values.
type Keyspace struct {
	mu  sync.RWMutex
	dbs map[int]*cmap.Map[string, *entry]
	now func() time.Time
}

// NewKeyspace creates an empty keyspace.
func NewKeyspace() *Keyspace {
	return &Keyspace{
		dbs: make(map[int]*cmap.Map[string, *entry]),
		now: time.Now,
	}
}

func (k *Keyspace) db(n int) *cmap.Map[string, *entry] {
	k.mu.RLock()
	m, ok := k.dbs[n]
	k.mu.RUnlock()
	if ok {
		return m
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if m, ok = k.dbs[n]; !ok {
		m = cmap.New[string, *entry]()
		k.dbs[n] = m
	}
	return m
}

func (k *Keyspace) nowMs() int64 { return k.now().UnixMilli() }

// live returns the entry for key, deleting it when expired.
func (k *Keyspace) live(db int, key string) (*entry, bool) {
	now := k.nowMs()
	var out *entry
	k.db(db).Compute(key, func(e *entry, exists bool) (*entry, bool) {
		if !exists || e.expired(now) {
			return nil, false
		}
		out = e
		return e, true
	})
	return out, out != nil
}

// Get returns a string value.
func (k *Keyspace) Get(db int, key string) (string, bool, error) {
	e, ok := k.live(db, key)
	if !ok {
		return "", false, nil
	}
	if e.kind != kindString {
		return "", false, ErrWrongType
	}
	return e.str, true, nil
}

// SetMode restricts Set to absent (NX) or present (XX) keys.
type SetMode uint8

const (
	SetAlways SetMode = iota
	SetIfAbsent
	SetIfPresent
)

// Set stores a string value. ttl <= 0 stores it without expiry. It reports
// whether the value was written.
func (k *Keyspace) Set(db int, key, value string, ttl time.Duration, mode SetMode) bool {
	now := k.nowMs()
	written := false
	k.db(db).Compute(key, func(e *entry, exists bool) (*entry, bool) {
		present := exists && !e.expired(now)
		if (mode == SetIfAbsent && present) || (mode == SetIfPresent && !present) {
			return e, present
		}
		written = true
		ne := &entry{kind: kindString, str: value}
		if ttl > 0 {
			ne.expiresAt = now + ttl.Milliseconds()
		}
		return ne, true
	})
	return written
}

// Del removes keys and returns how many existed.
func (k *Keyspace) Del(db int, keys ...string) int {
	now := k.nowMs()
	n := 0
	for _, key := range keys {
		k.db(db).Compute(key, func(e *entry, exists bool) (*entry, bool) {
			if exists && !e.expired(now) {
				n++
			}
			return nil, false
		})
	}
	return n
}

// Exists counts the keys that are present.
func (k *Keyspace) Exists(db int, keys ...string) int {
	n := 0
	for _, key := range keys {
		if _, ok := k.live(db, key); ok {
			n++
		}
	}
	return n
}

// Expire sets a TTL on an existing key. A non-positive ttl deletes it.
func (k *Keyspace) Expire(db int, key string, ttl time.Duration) bool {
	now := k.nowMs()
	found := false
	k.db(db).Compute(key, func(e *entry, exists bool) (*entry, bool) {
		if !exists || e.expired(now) {
			return nil, false
		}
		found = true
		if ttl <= 0 {
			return nil, false
		}
		ne := *e
		ne.expiresAt = now + ttl.Milliseconds()
		return &ne, true
	})
	return found
}

// Persist removes the TTL from a key.
func (k *Keyspace) Persist(db int, key string) bool {
	now := k.nowMs()
	changed := false
	k.db(db).Compute(key, func(e *entry, exists bool) (*entry, bool) {
		if !exists || e.expired(now) {
			return nil, false
		}
		if e.expiresAt == 0 {
			return e, true
		}
		changed = true
		ne := *e
		ne.expiresAt = 0
		return &ne, true
	})
	return changed
}

// TTL returns the remaining lifetime: -2 for a missing key and -1 for a key
// without expiry, otherwise the remaining duration.
func (k *Keyspace) TTL(db int, key string) time.Duration {
	e, ok := k.live(db, key)
	if !ok {
		return -2
	}
	if e.expiresAt == 0 {
		return -1
	}
	return time.Duration(e.expiresAt-k.nowMs()) * time.Millisecond
}

// HSet sets hash fields and returns the number of new fields.
func (k *Keyspace) HSet(db int, key string, pairs ...string) (int, error) {
	now := k.nowMs()
	added := 0
	var err error
	k.db(db).Compute(key, func(e *entry, exists bool) (*entry, bool) {
		ne := &entry{kind: kindHash, hash: make(map[string]string, len(pairs)/2)}
		if exists && !e.expired(now) {
			if e.kind != kindHash {
				err = ErrWrongType
				return e, true
			}
			ne.expiresAt = e.expiresAt
			for f, v := range e.hash {
				ne.hash[f] = v
			}
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			if _, ok := ne.hash[pairs[i]]; !ok {
				added++
			}
			ne.hash[pairs[i]] = pairs[i+1]
		}
		return ne, true
	})
	return added, err
}

// HGet returns one hash field.
func (k *Keyspace) HGet(db int, key, field string) (string, bool, error) {
	e, ok := k.live(db, key)
	if !ok {
		return "", false, nil
	}
	if e.kind != kindHash {
		return "", false, ErrWrongType
	}
	v, ok := e.hash[field]
	return v, ok, nil
}

// HDel removes hash fields, deleting the key once it is empty.
func (k *Keyspace) HDel(db int, key string, fields ...string) (int, error) {
	now := k.nowMs()
	removed := 0
	var err error
	k.db(db).Compute(key, func(e *entry, exists bool) (*entry, bool) {
		if !exists || e.expired(now) {
			return nil, false
		}
		if e.kind != kindHash {
			err = ErrWrongType
			return e, true
		}
		ne := &entry{kind: kindHash, hash: make(map[string]string, len(e.hash)), expiresAt: e.expiresAt}
		for f, v := range e.hash {
			ne.hash[f] = v
		}
		for _, f := range fields {
			if _, ok := ne.hash[f]; ok {
				delete(ne.hash, f)
				removed++
			}
		}
		return ne, len(ne.hash) > 0
	})
	return removed, err
}

// Size counts live keys in a database.
func (k *Keyspace) Size(db int) int {
	now := k.nowMs()
	n := 0
	k.db(db).Range(func(_ string, e *entry) bool {
		if !e.expired(now) {
			n++
		}
		return true
	})
	return n
}

// Flush removes every key in a database.
func (k *Keyspace) Flush(db int) {
	k.db(db).Clear()
}

// Sweep drops expired keys from every database and returns how many went.
func (k *Keyspace) Sweep() int {
	now := k.nowMs()
	k.mu.RLock()
	dbs := make([]*cmap.Map[string, *entry], 0, len(k.dbs))
	for _, m := range k.dbs {
		dbs = append(dbs, m)
	}
	k.mu.RUnlock()

	n := 0
	for _, m := range dbs {
		n += m.RemoveIf(func(_ string, e *entry) bool { return e.expired(now) })
	}
	return n
}
