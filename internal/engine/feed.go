package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNoResult = errors.New("no_result")

// Results hands externally-sourced outcome descriptors from the feed consumer
// to the table runners. One small buffered channel per feed key; a runner
// drains leftovers from earlier rounds before it starts waiting.
type Results struct {
	mu    sync.Mutex
	chans map[string]chan string
}

func NewResults() *Results {
	return &Results{chans: make(map[string]chan string)}
}

func (r *Results) ch(key string) chan string {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chans[key]
	if !ok {
		c = make(chan string, 4)
		r.chans[key] = c
	}
	return c
}

// Deliver hands one raw descriptor to whichever runner waits on the key.
// Never blocks: with no runner draining, the oldest message gives way.
func (r *Results) Deliver(key, raw string) {
	c := r.ch(key)
	for {
		select {
		case c <- raw:
			return
		default:
			select {
			case <-c:
			default:
			}
		}
	}
}

// Drain discards anything buffered for the key.
func (r *Results) Drain(key string) {
	c := r.ch(key)
	for {
		select {
		case <-c:
		default:
			return
		}
	}
}

// Await blocks for the next descriptor on the key, up to the timeout.
func (r *Results) Await(ctx context.Context, key string, timeout time.Duration) (string, error) {
	c := r.ch(key)
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case raw := <-c:
		return raw, nil
	case <-t.C:
		return "", ErrNoResult
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
