package events

import (
	"sync"
	"sync/atomic"
)

// subscriberBuffer は購読者ごとのチャネル容量
const subscriberBuffer = 256

// subscription は購読チャネルと受け取るイベント種別。filter が nil なら全種別。
type subscription struct {
	ch     chan Event
	filter map[EventType]bool
}

func (s *subscription) accepts(t EventType) bool {
	return s.filter == nil || s.filter[t]
}

// Bus はイベントを購読者へ配る。Publish はブロックしない。
// nil の *Bus への Publish は何もしない。
type Bus struct {
	mu         sync.RWMutex
	subs       map[<-chan Event]*subscription
	bufferSize int
	closed     bool
	dropped    atomic.Uint64
}

// NewBus は新しいバスを作成する
func NewBus() *Bus {
	return &Bus{
		subs:       make(map[<-chan Event]*subscription),
		bufferSize: subscriberBuffer,
	}
}

// Subscribe はイベントを受け取るチャネルを返す。
// types を指定するとその種別だけが届く。閉じたバスでは閉じたチャネルを返す。
func (b *Bus) Subscribe(types ...EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{ch: make(chan Event, b.bufferSize)}
	if len(types) > 0 {
		sub.filter = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.filter[t] = true
		}
	}
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs[sub.ch] = sub
	return sub.ch
}

// Unsubscribe は ch への配信を止めて閉じる。未知のチャネルは無視する
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(sub.ch)
	}
}

// Publish は種別が一致する購読者へ event を送る。
// バッファが満杯の購読者には届かず、Dropped に数えられる。
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.accepts(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped は満杯で送れなかった件数を返す
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount は購読者数を返す
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close はすべての購読チャネルを閉じる。複数回呼んでもよい
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for key, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, key)
	}
}
