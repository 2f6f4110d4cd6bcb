package intake

import (
	"context"
	"sync"
)

// Subscription 一个正在运行的消息接入
type Subscription interface {
	// Unsubscribe 停止接收，可重复调用
	Unsubscribe() error
	// Done 接入完全停止后关闭
	Done() <-chan struct{}
}

// subscription 由 context 驱动生命周期，stop 在 context 取消后执行一次
type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newSubscription(parent context.Context) (*subscription, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &subscription{cancel: cancel, done: make(chan struct{})}, ctx
}

func (s *subscription) finish() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscription) Unsubscribe() error {
	s.cancel()
	return nil
}

func (s *subscription) Done() <-chan struct{} {
	return s.done
}
