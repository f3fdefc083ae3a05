package store

import "sync"

// Notifier is a payload-free broadcast. Each subscriber owns a channel with
// room for one signal, so a slow reader sees at most one pending change and
// Broadcast never blocks.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan struct{})}
}

func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
	return ch, cancel
}

func (n *Notifier) Broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
