package idem

import (
	"context"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/bfametrics/xerrors"
)

// memoryEntry 处理中的条目带 token，已完成的条目 done 为 true
type memoryEntry struct {
	token LockToken
	done  bool
}

// memoryStore 进程内存储，过期交给 otter 处理
type memoryStore struct {
	mu      sync.Mutex
	prefix  string
	entries *otter.Cache[string, memoryEntry]
}

func newMemoryStore(prefix string, capacity int) (Store, error) {
	entries, err := otter.New(&otter.Options[string, memoryEntry]{
		MaximumSize: capacity,
		// 具体 TTL 在写入后通过 SetExpiresAfter 覆盖
		ExpiryCalculator: otter.ExpiryWriting[string, memoryEntry](time.Hour),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build otter cache")
	}
	return &memoryStore{prefix: prefix, entries: entries}, nil
}

func (ms *memoryStore) Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	token, err := newLockToken()
	if err != nil {
		return "", false, err
	}

	k := ms.prefix + key
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.entries.GetIfPresent(k); ok {
		return "", false, nil
	}
	ms.entries.Set(k, memoryEntry{token: token})
	ms.entries.SetExpiresAfter(k, ttl)
	return token, true, nil
}

func (ms *memoryStore) Unlock(ctx context.Context, key string, token LockToken) error {
	k := ms.prefix + key
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if e, ok := ms.entries.GetIfPresent(k); ok && !e.done && e.token == token {
		ms.entries.Invalidate(k)
	}
	return nil
}

func (ms *memoryStore) MarkDone(ctx context.Context, key string, ttl time.Duration, token LockToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := ms.prefix + key
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.entries.Set(k, memoryEntry{done: true})
	ms.entries.SetExpiresAfter(k, ttl)
	return nil
}

func (ms *memoryStore) IsDone(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e, ok := ms.entries.GetIfPresent(ms.prefix + key)
	return ok && e.done, nil
}
