package idem

import (
	"context"
	"time"

	"github.com/ceyewan/bfametrics/clog"
)

type idem struct {
	cfg    *Config
	store  Store
	logger clog.Logger
}

func (i *idem) Consume(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	if ttl <= 0 {
		ttl = i.cfg.DefaultTTL
	}

	done, err := i.store.IsDone(ctx, key)
	if err != nil {
		i.logger.Error("failed to get consume marker", clog.Error(err), clog.String("key", key))
		return false, err
	}
	if done {
		i.logger.Debug("idem consume hit", clog.String("key", key))
		return false, nil
	}

	token, locked, err := i.store.Lock(ctx, key, i.cfg.LockTTL)
	if err != nil {
		i.logger.Error("failed to acquire consume lock", clog.Error(err), clog.String("key", key))
		return false, err
	}
	if !locked {
		i.logger.Debug("concurrent consume detected", clog.String("key", key))
		return false, ErrConcurrentRequest
	}

	if err := fn(ctx); err != nil {
		if unlockErr := i.store.Unlock(context.WithoutCancel(ctx), key, token); unlockErr != nil {
			i.logger.Error("failed to unlock after consume failure", clog.Error(unlockErr), clog.String("key", key))
		}
		return false, err
	}

	if err := i.store.MarkDone(ctx, key, ttl, token); err != nil {
		i.logger.Error("failed to set consume marker", clog.Error(err), clog.String("key", key))
		return true, err
	}
	i.logger.Debug("consume completed", clog.String("key", key))
	return true, nil
}
