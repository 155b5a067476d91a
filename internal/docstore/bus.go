package docstore

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"

	"code4kids_backend/pkg/logger"

	"go.uber.org/zap"
)

// Bus fans out "collection changed" signals to subscribers.
type Bus interface {
	Publish(ctx context.Context, collection string)
	Listen(collection string) (<-chan struct{}, func())
}

// LocalBus delivers change signals inside one process.
type LocalBus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]chan struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{listeners: make(map[string]map[int]chan struct{})}
}

func (b *LocalBus) Publish(_ context.Context, collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners[collection] {
		signal(ch)
	}
}

func (b *LocalBus) Listen(collection string) (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{}, 1)
	id := b.nextID
	b.nextID++
	if b.listeners[collection] == nil {
		b.listeners[collection] = make(map[int]chan struct{})
	}
	b.listeners[collection][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners[collection], id)
		})
	}
}

// signal never blocks; pending signals coalesce.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// RedisBus publishes change signals on redis channels so every instance of the
// service sees writes made by the others.
type RedisBus struct {
	Redis  *redis.Client
	Prefix string
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{Redis: rdb, Prefix: "docstore:"}
}

func (b *RedisBus) channel(collection string) string {
	return b.Prefix + collection
}

func (b *RedisBus) Publish(ctx context.Context, collection string) {
	if err := b.Redis.Publish(ctx, b.channel(collection), "changed").Err(); err != nil {
		logger.Log.Warn("docstore change publish failed", zap.String("collection", collection), zap.Error(err))
	}
}

func (b *RedisBus) Listen(collection string) (<-chan struct{}, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	ps := b.Redis.Subscribe(ctx, b.channel(collection))
	out := make(chan struct{}, 1)

	go func() {
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			cancel()
			if err := ps.Close(); err != nil {
				logger.Log.Warn("docstore redis unsubscribe failed", zap.String("collection", collection), zap.Error(err))
			}
		})
	}
}

// subscribe runs q now and again after every change signal until the returned
// function is called or ctx ends.
func subscribe(ctx context.Context, s Store, bus Bus, collection string, q Query, fn func([]*Document)) (func(), error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	docs, err := s.Query(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	fn(docs)

	changes, stopListen := bus.Listen(collection)
	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-subCtx.Done():
				return
			case <-changes:
				docs, err := s.Query(subCtx, collection, q)
				if err != nil {
					if subCtx.Err() != nil {
						return
					}
					logger.Log.Warn("docstore subscription query failed", zap.String("collection", collection), zap.Error(err))
					continue
				}
				fn(docs)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			stopListen()
			<-done
		})
	}, nil
}
