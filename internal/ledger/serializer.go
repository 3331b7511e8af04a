package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"binarymlm/internal/metrics"
)

// Serializer runs work for the same user one call at a time, in arrival order.
// Each key holds the tail of a queue; a caller waits for the previous tail to
// finish and the key is dropped once its queue is empty.
type Serializer struct {
	mu    sync.Mutex
	tails map[uint]*turn

	attempts uint
	delay    time.Duration
	metrics  *metrics.Collectors
}

type turn struct {
	done chan struct{}
}

func NewSerializer(attempts uint, delay time.Duration, m *metrics.Collectors) *Serializer {
	if attempts == 0 {
		attempts = 1
	}
	return &Serializer{
		tails:    make(map[uint]*turn),
		attempts: attempts,
		delay:    delay,
		metrics:  m,
	}
}

// Execute runs fn once every earlier call for any of userIDs has settled. fn is
// retried with linear backoff on transient store errors only.
func Execute[T any](ctx context.Context, s *Serializer, userIDs []uint, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	release, err := s.acquire(ctx, userIDs)
	if err != nil {
		return zero, err
	}
	defer release()

	result, err := retry.DoWithData(
		func() (T, error) { return fn(ctx) },
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(func(n uint, _ error, cfg *retry.Config) time.Duration {
			return s.delay * time.Duration(n+1)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransient),
		retry.OnRetry(func(n uint, err error) {
			s.metrics.ObserveSerializerRetry("transient")
			log.Warn().Err(err).Uint("attempt", n+1).Uints("users", userIDs).Msg("retrying transient store error")
		}),
	)
	if err != nil && IsTransient(err) && !errors.Is(err, ErrTransientStore) {
		return zero, fmt.Errorf("%w: %w", ErrTransientStore, err)
	}
	return result, err
}

// Pending reports how many users currently have queued or running work.
func (s *Serializer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tails)
}

func (s *Serializer) acquire(ctx context.Context, userIDs []uint) (func(), error) {
	keys := uniqueSorted(userIDs)
	releases := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range keys {
		release, err := s.acquireOne(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func (s *Serializer) acquireOne(ctx context.Context, key uint) (func(), error) {
	cur := &turn{done: make(chan struct{})}

	s.mu.Lock()
	prev := s.tails[key]
	s.tails[key] = cur
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if s.tails[key] == cur {
			delete(s.tails, key)
		}
		s.mu.Unlock()
		close(cur.done)
	}

	if prev == nil {
		return release, nil
	}
	select {
	case <-prev.done:
		return release, nil
	case <-ctx.Done():
		// Keep our place in the queue so later callers still wait for prev.
		go func() {
			<-prev.done
			release()
		}()
		return nil, ctx.Err()
	}
}

func uniqueSorted(ids []uint) []uint {
	out := append([]uint(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
