package idem

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/ceyewan/bfametrics/xerrors"
)

// Store 幂等状态存储
//
// 每个键有三种状态：不存在、处理中 (Lock 成功后)、已完成 (MarkDone 后)。
type Store interface {
	// Lock 尝试把键标记为处理中，false 表示已被其他调用占用
	Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error)
	// Unlock 释放锁，只有持有 token 的调用能释放
	Unlock(ctx context.Context, key string, token LockToken) error
	// MarkDone 标记已完成并释放锁
	MarkDone(ctx context.Context, key string, ttl time.Duration, token LockToken) error
	// IsDone 键是否已完成
	IsDone(ctx context.Context, key string) (bool, error)
}

const (
	lockSuffix = ":lock"
	doneSuffix = ":done"
)

// LockToken 锁令牌，保证只有加锁方能解锁
type LockToken string

const lockTokenSize = 16

func newLockToken() (LockToken, error) {
	b := make([]byte, lockTokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", xerrors.Wrap(err, "idem: generate lock token")
	}
	return LockToken(hex.EncodeToString(b)), nil
}
