package booking

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andestours/experience-booking/internal/capacity"
	"github.com/andestours/experience-booking/internal/model"
	"github.com/andestours/experience-booking/internal/queue"
)

// fakeCapacity is an in-memory capacity.Store honoring the atomic
// conditional-update contract, with injectable transient failures.
type fakeCapacity struct {
	mu       sync.Mutex
	total    int64
	rem      int64
	tokens   map[string]int64
	missing  bool // simulate a deleted experience
	failRels int  // remaining transient Release failures
}

func newFakeCapacity(total int64) *fakeCapacity {
	return &fakeCapacity{total: total, rem: total, tokens: make(map[string]int64)}
}

func (f *fakeCapacity) Get(ctx context.Context, id uint64) (capacity.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing {
		return capacity.Record{}, capacity.ErrNotFound
	}
	return capacity.Record{Total: f.total, Remaining: f.rem}, nil
}

func (f *fakeCapacity) ConditionalDecrement(ctx context.Context, id uint64, n int64, token string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing {
		return 0, capacity.ErrNotFound
	}
	if prev, ok := f.tokens[token]; ok {
		return prev, nil
	}
	if f.rem < n {
		return f.rem, capacity.ErrInsufficient
	}
	f.rem -= n
	f.tokens[token] = f.rem
	return f.rem, nil
}

func (f *fakeCapacity) Release(ctx context.Context, id uint64, n int64, token string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRels > 0 {
		f.failRels--
		return 0, errors.New("connection reset")
	}
	delete(f.tokens, token)
	f.rem += n
	if f.rem > f.total {
		f.rem = f.total
	}
	return f.rem, nil
}

func (f *fakeCapacity) Init(ctx context.Context, id uint64, total int64) error { return nil }
func (f *fakeCapacity) Delete(ctx context.Context, id uint64) error            { return nil }

func (f *fakeCapacity) remaining() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rem
}

// fakeReservations is an in-memory ReservationStore.  Missing rows are
// reported with sql.ErrNoRows per the interface contract.
type fakeReservations struct {
	mu         sync.Mutex
	nextID     uint64
	records    map[uint64]model.Reservation
	failCreate bool
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{nextID: 1, records: make(map[uint64]model.Reservation)}
}

func (f *fakeReservations) Create(ctx context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("write timeout")
	}
	r.ID = f.nextID
	f.nextID++
	f.records[r.ID] = *r
	return nil
}

func (f *fakeReservations) GetByIdempotencyKey(ctx context.Context, userID uint64, key string) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.UserID == userID && rec.IdempotencyKey != nil && *rec.IdempotencyKey == key {
			return rec, nil
		}
	}
	return model.Reservation{}, sql.ErrNoRows
}

func (f *fakeReservations) SetAttended(ctx context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	rec.Attended = true
	f.records[id] = rec
	return nil
}

func (f *fakeReservations) Delete(ctx context.Context, id uint64) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return model.Reservation{}, sql.ErrNoRows
	}
	delete(f.records, id)
	return rec, nil
}

func (f *fakeReservations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeEvents records published events.
type fakeEvents struct {
	mu        sync.Mutex
	confirmed []queue.ReservationConfirmedEvent
	reconcile []queue.CapacityReconcileEvent
}

func (f *fakeEvents) PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, ev)
	return nil
}

func (f *fakeEvents) PublishCapacityReconcile(ctx context.Context, ev queue.CapacityReconcileEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconcile = append(f.reconcile, ev)
	return nil
}

var fixedNow = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

func newTestController(capStore capacity.Store, res ReservationStore, events EventPublisher) *Controller {
	ledger := capacity.NewLedger(capStore, 2, time.Millisecond)
	return NewController(ledger, res, events, fixedNow)
}

func validRequest() CreateRequest {
	return CreateRequest{
		ExperienceID: 7,
		UserID:       42,
		Date:         "2026-05-02",
		PartySize:    2,
		Notes:        "window seats please",
	}
}

func TestCreateReservationConfirms(t *testing.T) {
	capStore := newFakeCapacity(5)
	res := newFakeReservations()
	events := &fakeEvents{}
	ctrl := newTestController(capStore, res, events)

	rec, err := ctrl.CreateReservation(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected an assigned reservation id")
	}
	if rec.Attended {
		t.Fatal("new reservations must start unattended")
	}
	if rec.Status != "CONFIRMED" {
		t.Fatalf("status = %q, want CONFIRMED", rec.Status)
	}
	if capStore.remaining() != 3 {
		t.Fatalf("remaining = %d, want 3", capStore.remaining())
	}
	if len(events.confirmed) != 1 {
		t.Fatalf("confirmed events = %d, want 1", len(events.confirmed))
	}
}

func TestCreateReservationValidation(t *testing.T) {
	ctrl := newTestController(newFakeCapacity(5), newFakeReservations(), nil)

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"zero party size", func(r *CreateRequest) { r.PartySize = 0 }},
		{"negative party size", func(r *CreateRequest) { r.PartySize = -3 }},
		{"missing experience", func(r *CreateRequest) { r.ExperienceID = 0 }},
		{"missing user", func(r *CreateRequest) { r.UserID = 0 }},
		{"past date", func(r *CreateRequest) { r.Date = "2026-04-30" }},
		{"malformed date", func(r *CreateRequest) { r.Date = "soon" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := ctrl.CreateReservation(context.Background(), req)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestCreateReservationUnknownExperience(t *testing.T) {
	capStore := newFakeCapacity(5)
	capStore.missing = true
	ctrl := newTestController(capStore, newFakeReservations(), nil)

	_, err := ctrl.CreateReservation(context.Background(), validRequest())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestTwoConcurrentRequestsOneSeatPool(t *testing.T) {
	// capacity_total = 2, two concurrent requests for 2 seats each:
	// exactly one confirms with remaining 0, the other is rejected.
	capStore := newFakeCapacity(2)
	res := newFakeReservations()
	ctrl := newTestController(capStore, res, nil)

	type outcome struct {
		rec model.Reservation
		err error
	}
	results := make(chan outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			req := validRequest()
			req.UserID = user
			rec, err := ctrl.CreateReservation(context.Background(), req)
			results <- outcome{rec: rec, err: err}
		}(uint64(100 + i))
	}
	wg.Wait()
	close(results)

	confirmed, rejected := 0, 0
	for out := range results {
		if out.err == nil {
			confirmed++
			continue
		}
		var capErr *CapacityRejectedError
		if errors.As(out.err, &capErr) {
			rejected++
			if capErr.Remaining != 0 {
				t.Fatalf("rejection hint = %d, want 0", capErr.Remaining)
			}
		} else {
			t.Fatalf("unexpected error: %v", out.err)
		}
	}
	if confirmed != 1 || rejected != 1 {
		t.Fatalf("confirmed=%d rejected=%d, want 1 and 1", confirmed, rejected)
	}
	if capStore.remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", capStore.remaining())
	}
}

func TestSequentialAdmissionDrainsCapacity(t *testing.T) {
	// capacity_total = 5, requests for 2, 2, 2: the first two confirm
	// with remaining 3 then 1, the third is rejected with hint 1.
	capStore := newFakeCapacity(5)
	res := newFakeReservations()
	ctrl := newTestController(capStore, res, nil)

	wantRemaining := []int64{3, 1}
	for i, want := range wantRemaining {
		req := validRequest()
		req.UserID = uint64(200 + i)
		if _, err := ctrl.CreateReservation(context.Background(), req); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if capStore.remaining() != want {
			t.Fatalf("after request %d remaining = %d, want %d", i+1, capStore.remaining(), want)
		}
	}

	req := validRequest()
	req.UserID = 202
	_, err := ctrl.CreateReservation(context.Background(), req)
	var capErr *CapacityRejectedError
	if !errors.As(err, &capErr) {
		t.Fatalf("third request: got %v, want CapacityRejectedError", err)
	}
	if capErr.Remaining != 1 {
		t.Fatalf("rejection hint = %d, want 1", capErr.Remaining)
	}
}

func TestIdempotentRetryCreatesOneReservation(t *testing.T) {
	capStore := newFakeCapacity(5)
	res := newFakeReservations()
	ctrl := newTestController(capStore, res, nil)

	req := validRequest()
	req.IdempotencyKey = "client-key-1"

	first, err := ctrl.CreateReservation(context.Background(), req)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := ctrl.CreateReservation(context.Background(), req)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("retry created a new reservation: %d vs %d", first.ID, second.ID)
	}
	if res.count() != 1 {
		t.Fatalf("reservations = %d, want 1", res.count())
	}
	if capStore.remaining() != 3 {
		t.Fatalf("remaining = %d, want 3 (single decrement)", capStore.remaining())
	}
}

func TestRetryAfterPersistFailureDecrementsOnce(t *testing.T) {
	// A persist failure triggers compensation, and the client is told
	// to resubmit with the same idempotency key.  The compensating
	// release must have invalidated the decrement token: the retry has
	// to reserve seats for real, not replay the undone decrement.
	capStore := newFakeCapacity(5)
	res := newFakeReservations()
	res.failCreate = true
	ctrl := newTestController(capStore, res, nil)

	req := validRequest()
	req.IdempotencyKey = "retry-after-503"

	_, err := ctrl.CreateReservation(context.Background(), req)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("first attempt: got %v, want ErrUnavailable", err)
	}
	if capStore.remaining() != 5 {
		t.Fatalf("after compensation remaining = %d, want 5", capStore.remaining())
	}

	res.failCreate = false
	rec, err := ctrl.CreateReservation(context.Background(), req)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("retry should confirm a reservation")
	}
	if res.count() != 1 {
		t.Fatalf("reservations = %d, want 1", res.count())
	}
	if capStore.remaining() != 3 {
		t.Fatalf("remaining = %d, want 3 (one real decrement held)", capStore.remaining())
	}
}

func TestRecreateAfterCancelDecrementsAgain(t *testing.T) {
	// Cancelling drops the reservation's token along with the release,
	// so a new booking under the same idempotency key cannot replay
	// the old decrement into free seats.
	capStore := newFakeCapacity(5)
	res := newFakeReservations()
	ctrl := newTestController(capStore, res, nil)

	req := validRequest()
	req.IdempotencyKey = "book-twice"

	first, err := ctrl.CreateReservation(context.Background(), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ctrl.CancelReservation(context.Background(), first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if capStore.remaining() != 5 {
		t.Fatalf("after cancel remaining = %d, want 5", capStore.remaining())
	}

	second, err := ctrl.CreateReservation(context.Background(), req)
	if err != nil {
		t.Fatalf("re-create: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("re-create returned the cancelled reservation %d", first.ID)
	}
	if capStore.remaining() != 3 {
		t.Fatalf("remaining = %d, want 3 (seats held again)", capStore.remaining())
	}
	if res.count() != 1 {
		t.Fatalf("reservations = %d, want 1", res.count())
	}
}

func TestCompensationOnPersistFailure(t *testing.T) {
	capStore := newFakeCapacity(5)
	res := newFakeReservations()
	res.failCreate = true
	ctrl := newTestController(capStore, res, nil)

	_, err := ctrl.CreateReservation(context.Background(), validRequest())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if capStore.remaining() != 5 {
		t.Fatalf("remaining = %d, want restored 5", capStore.remaining())
	}
	if res.count() != 0 {
		t.Fatalf("reservations = %d, want 0", res.count())
	}
}

func TestCompensationFailureIsRecorded(t *testing.T) {
	capStore := newFakeCapacity(5)
	capStore.failRels = 100 // release never succeeds within the retry budget
	res := newFakeReservations()
	res.failCreate = true
	events := &fakeEvents{}
	ctrl := newTestController(capStore, res, events)

	_, err := ctrl.CreateReservation(context.Background(), validRequest())
	var incErr *InconsistencyError
	if !errors.As(err, &incErr) {
		t.Fatalf("got %v, want InconsistencyError", err)
	}
	if incErr.Seats != 2 || incErr.ExperienceID != 7 {
		t.Fatalf("inconsistency = %+v, want 2 seats on experience 7", incErr)
	}
	if len(events.reconcile) != 1 {
		t.Fatalf("reconcile events = %d, want 1", len(events.reconcile))
	}
}

func TestCancelRestoresCapacity(t *testing.T) {
	capStore := newFakeCapacity(5)
	res := newFakeReservations()
	ctrl := newTestController(capStore, res, nil)

	rec, err := ctrl.CreateReservation(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if capStore.remaining() != 3 {
		t.Fatalf("remaining = %d, want 3", capStore.remaining())
	}

	cancelled, err := ctrl.CancelReservation(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.PartySize != 2 {
		t.Fatalf("cancelled party size = %d, want 2", cancelled.PartySize)
	}
	if capStore.remaining() != 5 {
		t.Fatalf("remaining = %d, want restored 5", capStore.remaining())
	}

	// Second cancel of the same reservation reports NotFound.
	if _, err := ctrl.CancelReservation(context.Background(), rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second cancel: got %v, want ErrNotFound", err)
	}
}

func TestMarkAttended(t *testing.T) {
	capStore := newFakeCapacity(5)
	res := newFakeReservations()
	ctrl := newTestController(capStore, res, nil)

	rec, err := ctrl.CreateReservation(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ctrl.MarkAttended(context.Background(), rec.ID); err != nil {
		t.Fatalf("attend: %v", err)
	}
	stored := res.records[rec.ID]
	if !stored.Attended {
		t.Fatal("attended flag not set")
	}
	// Attendance does not touch capacity.
	if capStore.remaining() != 3 {
		t.Fatalf("remaining = %d, want 3", capStore.remaining())
	}

	if err := ctrl.MarkAttended(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing reservation: got %v, want ErrNotFound", err)
	}
}
