package store

import (
	"context"
	"sync"
)

// Hub — разделяемое хранилище в памяти процесса. Моделирует несколько
// контекстов клиентов, работающих с одним набором ключей: каждый контекст
// получает собственный дескриптор через Client. Используется в тестах
// и при запуске без внешнего хранилища.
type Hub struct {
	mu     sync.Mutex
	values map[string][]byte
	subs   map[*memorySub]struct{}
}

// NewHub создаёт пустое хранилище в памяти.
func NewHub() *Hub {
	return &Hub{
		values: make(map[string][]byte),
		subs:   make(map[*memorySub]struct{}),
	}
}

// Client возвращает дескриптор хранилища для одного контекста клиента.
func (h *Hub) Client() Store {
	return &memoryClient{hub: h}
}

type memorySub struct {
	owner *memoryClient
	keys  map[string]struct{}
	ch    chan Change
}

type memoryClient struct {
	hub *Hub
}

func (c *memoryClient) Get(_ context.Context, key string) ([]byte, error) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()

	value, ok := c.hub.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (c *memoryClient) Set(_ context.Context, key string, value []byte) error {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()

	old := c.hub.values[key]
	stored := make([]byte, len(value))
	copy(stored, value)
	c.hub.values[key] = stored

	for sub := range c.hub.subs {
		// Автор записи собственное уведомление не получает.
		if sub.owner == c {
			continue
		}
		if _, ok := sub.keys[key]; !ok {
			continue
		}
		change := Change{Key: key, OldValue: old, NewValue: stored}
		select {
		case sub.ch <- change:
		default:
			// Подписчик не успевает: быстрые последовательные записи могут
			// перекрывать друг друга, это принятое ограничение сигнала.
		}
	}

	return nil
}

func (c *memoryClient) Subscribe(ctx context.Context, keys ...string) (<-chan Change, error) {
	sub := &memorySub{
		owner: c,
		keys:  make(map[string]struct{}, len(keys)),
		ch:    make(chan Change, 16),
	}
	for _, key := range keys {
		sub.keys[key] = struct{}{}
	}

	c.hub.mu.Lock()
	c.hub.subs[sub] = struct{}{}
	c.hub.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.hub.mu.Lock()
		delete(c.hub.subs, sub)
		c.hub.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch, nil
}

func (c *memoryClient) Close() error {
	return nil
}
