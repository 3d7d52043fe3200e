package usecases

import "sync"

// watchers is a listener registry. Listeners are invoked outside of any
// component lock, in registration order.
type watchers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
	keys []int
}

// add registers fn and returns a function that removes it.
func (w *watchers[T]) add(fn func(T)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = make(map[int]func(T))
	}
	id := w.next
	w.next++
	w.fns[id] = fn
	w.keys = append(w.keys, id)
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.fns, id)
		for i, k := range w.keys {
			if k == id {
				w.keys = append(w.keys[:i], w.keys[i+1:]...)
				break
			}
		}
	}
}

func (w *watchers[T]) notify(v T) {
	w.mu.Lock()
	fns := make([]func(T), 0, len(w.keys))
	for _, k := range w.keys {
		fns = append(fns, w.fns[k])
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
