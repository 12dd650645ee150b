package capacity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory Store honoring the atomicity contract: the
// precondition check and the decrement happen under one lock, and
// tokens are remembered for idempotent replay.
type memStore struct {
	mu     sync.Mutex
	total  int64
	rem    int64
	tokens map[string]int64

	failGets int // remaining transient failures for ConditionalDecrement
	failRels int // remaining transient failures for Release
	decrs    int // ConditionalDecrement invocations observed
}

var errFlaky = errors.New("connection reset")

func newMemStore(total int64) *memStore {
	return &memStore{total: total, rem: total, tokens: make(map[string]int64)}
}

func (m *memStore) Get(ctx context.Context, id uint64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Record{Total: m.total, Remaining: m.rem}, nil
}

func (m *memStore) ConditionalDecrement(ctx context.Context, id uint64, n int64, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decrs++
	if m.failGets > 0 {
		m.failGets--
		return 0, errFlaky
	}
	if prev, ok := m.tokens[token]; ok {
		return prev, nil
	}
	if m.rem < n {
		return m.rem, ErrInsufficient
	}
	m.rem -= n
	m.tokens[token] = m.rem
	return m.rem, nil
}

func (m *memStore) Release(ctx context.Context, id uint64, n int64, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRels > 0 {
		m.failRels--
		return 0, errFlaky
	}
	delete(m.tokens, token)
	m.rem += n
	if m.rem > m.total {
		m.rem = m.total
	}
	return m.rem, nil
}

func (m *memStore) Init(ctx context.Context, id uint64, total int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	booked := m.total - m.rem
	m.total = total
	m.rem = total - booked
	if m.rem < 0 {
		m.rem = 0
	}
	return nil
}

func (m *memStore) Delete(ctx context.Context, id uint64) error { return nil }

func (m *memStore) remaining() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rem
}

func TestTryReserveRetriesTransientFaults(t *testing.T) {
	store := newMemStore(5)
	store.failGets = 2
	ledger := NewLedger(store, 4, time.Millisecond)

	remaining, err := ledger.TryReserve(context.Background(), 1, 2, "tok-1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("remaining = %d, want 3", remaining)
	}
}

func TestTryReserveExhaustsRetries(t *testing.T) {
	store := newMemStore(5)
	store.failGets = 100
	ledger := NewLedger(store, 3, time.Millisecond)

	_, err := ledger.TryReserve(context.Background(), 1, 2, "tok-1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if store.decrs != 3 {
		t.Fatalf("attempts = %d, want 3", store.decrs)
	}
	if store.remaining() != 5 {
		t.Fatalf("remaining = %d, want untouched 5", store.remaining())
	}
}

func TestTryReserveRejectionIsNotRetried(t *testing.T) {
	store := newMemStore(1)
	ledger := NewLedger(store, 5, time.Millisecond)

	remaining, err := ledger.TryReserve(context.Background(), 1, 2, "tok-1")
	if !errors.Is(err, ErrInsufficient) {
		t.Fatalf("got %v, want ErrInsufficient", err)
	}
	if remaining != 1 {
		t.Fatalf("remaining hint = %d, want 1", remaining)
	}
	if store.decrs != 1 {
		t.Fatalf("attempts = %d, want 1 (business outcomes are final)", store.decrs)
	}
}

func TestTryReserveTokenReplayDoesNotDoubleDecrement(t *testing.T) {
	store := newMemStore(5)
	ledger := NewLedger(store, 3, time.Millisecond)

	first, err := ledger.TryReserve(context.Background(), 1, 2, "same-token")
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	second, err := ledger.TryReserve(context.Background(), 1, 2, "same-token")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first != second {
		t.Fatalf("replay remaining = %d, want %d", second, first)
	}
	if store.remaining() != 3 {
		t.Fatalf("remaining = %d, want 3 (single decrement)", store.remaining())
	}
}

func TestConcurrentReservesNeverOverbook(t *testing.T) {
	const total = 10
	store := newMemStore(total)
	ledger := NewLedger(store, 2, time.Millisecond)

	const callers = 40
	var wg sync.WaitGroup
	granted := make(chan int64, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			token, _ := NewToken()
			if _, err := ledger.TryReserve(context.Background(), 1, 3, token); err == nil {
				granted <- 3
			}
		}(i)
	}
	wg.Wait()
	close(granted)

	var sum int64
	for n := range granted {
		sum += n
	}
	if sum > total {
		t.Fatalf("granted %d seats against capacity %d", sum, total)
	}
	if store.remaining() != total-sum {
		t.Fatalf("remaining = %d, want %d", store.remaining(), total-sum)
	}
}

func TestReleaseCapsAtTotal(t *testing.T) {
	store := newMemStore(4)
	ledger := NewLedger(store, 2, time.Millisecond)

	if _, err := ledger.TryReserve(context.Background(), 1, 2, "t1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	remaining, err := ledger.Release(context.Background(), 1, 100, "")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if remaining != 4 {
		t.Fatalf("remaining = %d, want capped at total 4", remaining)
	}
}

func TestReleaseInvalidatesToken(t *testing.T) {
	store := newMemStore(5)
	ledger := NewLedger(store, 2, time.Millisecond)

	if _, err := ledger.TryReserve(context.Background(), 1, 2, "tok-1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := ledger.Release(context.Background(), 1, 2, "tok-1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	// The token was dropped with the release, so reserving again under
	// it is a real decrement, not a replay of the recorded remaining.
	remaining, err := ledger.TryReserve(context.Background(), 1, 2, "tok-1")
	if err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("remaining = %d, want 3 (fresh decrement)", remaining)
	}
	if store.remaining() != 3 {
		t.Fatalf("store remaining = %d, want 3", store.remaining())
	}
}
