package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trailteam/trailkit/core"
)

// MemoryStore 是进程内的 KeyValueStore 实现，用于测试/开发/单机部署。
// 支持 TTL，过期 key 由后台清理协程回收；进程重启后数据丢失。
type MemoryStore struct {
	mu     sync.RWMutex
	kv     map[string]memEntry
	zsets  map[string]map[string]float64
	hashes map[string]map[string][]byte

	stop chan struct{}
	once sync.Once
}

type memEntry struct {
	value    []byte
	expireAt time.Time // 零值表示不过期
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		kv:     make(map[string]memEntry),
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string][]byte),
		stop:   make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.kv[key]
	if !ok || e.expired(time.Now()) {
		return nil, core.ErrStoreNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.kv[key] = memEntry{value: value, expireAt: expireAt(ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.kv, key)
	return nil
}

func (m *MemoryStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if e, ok := m.kv[k]; ok && !e.expired(now) {
			out[k] = e.value
		}
	}
	return out, nil
}

func (m *MemoryStore) BatchSet(_ context.Context, kvs map[string][]byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp := expireAt(ttl)
	for k, v := range kvs {
		m.kv[k] = memEntry{value: v, expireAt: exp}
	}
	return nil
}

func (m *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] = score
	return nil
}

// ZRange 按分数降序返回 [start, stop] 区间的成员（同分按成员名升序）。
func (m *MemoryStore) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zset := m.zsets[key]
	if len(zset) == 0 {
		return nil, nil
	}

	type pair struct {
		member string
		score  float64
	}
	pairs := make([]pair, 0, len(zset))
	for member, score := range zset {
		pairs = append(pairs, pair{member, score})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].member < pairs[j].member
	})

	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(pairs)) {
		stop = int64(len(pairs)) - 1
	}
	if start > stop {
		return nil, nil
	}

	out := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, pairs[i].member)
	}
	return out, nil
}

func (m *MemoryStore) ZScore(_ context.Context, key, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	score, ok := m.zsets[key][member]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	return score, nil
}

func (m *MemoryStore) HGet(_ context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.hashes[key][field]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return val, nil
}

func (m *MemoryStore) HSet(_ context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string][]byte)
	}
	m.hashes[key][field] = value
	return nil
}

func (m *MemoryStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash := m.hashes[key]
	out := make(map[string][]byte, len(hash))
	for field, val := range hash {
		out[field] = val
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryStore) janitor() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for k, e := range m.kv {
				if e.expired(now) {
					delete(m.kv, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func expireAt(ttl []int) time.Time {
	if len(ttl) > 0 && ttl[0] > 0 {
		return time.Now().Add(time.Duration(ttl[0]) * time.Second)
	}
	return time.Time{}
}

var _ core.Store = (*MemoryStore)(nil)
var _ core.KeyValueStore = (*MemoryStore)(nil)
