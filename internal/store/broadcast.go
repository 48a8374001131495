package store

import (
	"sync"

	"bucket-list/internal/model"
)

// broadcaster fans snapshots out to subscribers without blocking. A slow
// subscriber keeps only the newest snapshot.
type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan []model.Activity
}

func (b *broadcaster) subscribe(buffer int) (<-chan []model.Activity, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan []model.Activity, buffer)

	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[int]chan []model.Activity)
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

func (b *broadcaster) publish(items []model.Activity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		snapshot := model.CloneAll(items)
		select {
		case ch <- snapshot:
			continue
		default:
		}
		// Full: drop the oldest pending snapshot and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}
