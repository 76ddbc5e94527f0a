package reserve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Artistsreach/freshonboard-settlement/internal/campaigns"
	"github.com/Artistsreach/freshonboard-settlement/internal/processor"
	"github.com/Artistsreach/freshonboard-settlement/internal/reservations"
)

// --- fakes ---

type fakeCampaigns struct {
	items map[string]campaigns.Campaign
}

func (f *fakeCampaigns) Get(ctx context.Context, id string) (*campaigns.Campaign, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type fakeCreator struct {
	mu       sync.Mutex
	created  map[string]reservations.Reservation
	counters map[string]int
	failWith error
}

func newFakeCreator() *fakeCreator {
	return &fakeCreator{
		created:  map[string]reservations.Reservation{},
		counters: map[string]int{},
	}
}

func (f *fakeCreator) CreateWithCampaignIncrement(ctx context.Context, r reservations.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, exists := f.created[r.ReservationID]; exists {
		return reservations.ErrReservationExists
	}
	f.created[r.ReservationID] = r
	f.counters[r.CampaignID]++
	return nil
}

// fakeProcessor deduplicates holds by idempotency key, like the real processor.
type fakeProcessor struct {
	mu        sync.Mutex
	holds     map[string]*processor.Hold // idempotency key -> hold
	holdErr   error
	custCalls int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{holds: map[string]*processor.Hold{}}
}

func (f *fakeProcessor) EnsureCustomer(ctx context.Context, externalID string) (*processor.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.custCalls++
	return &processor.Customer{ID: "cus_" + externalID, ExternalID: externalID}, nil
}

func (f *fakeProcessor) CreateHold(ctx context.Context, params processor.HoldParams) (*processor.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holdErr != nil {
		return nil, f.holdErr
	}
	if h, ok := f.holds[params.IdempotencyKey]; ok {
		return h, nil
	}
	h := &processor.Hold{
		ID:           "hold_" + params.IdempotencyKey,
		Status:       processor.HoldStatusAuthorized,
		Amount:       params.Amount,
		Currency:     params.Currency,
		ClientSecret: "secret_" + params.IdempotencyKey,
		Metadata:     params.Metadata,
	}
	f.holds[params.IdempotencyKey] = h
	return h, nil
}

func (f *fakeProcessor) CaptureHold(ctx context.Context, holdID, key string) (*processor.Hold, error) {
	return nil, errors.New("not used")
}

func (f *fakeProcessor) CancelHold(ctx context.Context, holdID, key string) (*processor.Hold, error) {
	return nil, errors.New("not used")
}

func activeCampaigns() *fakeCampaigns {
	return &fakeCampaigns{items: map[string]campaigns.Campaign{
		"camp-1": {CampaignID: "camp-1", TargetQuantity: 3, Status: campaigns.StatusActive},
	}}
}

func validInput() Input {
	return Input{
		BuyerID:          "buyer-1",
		CampaignID:       "camp-1",
		Amount:           2500,
		Currency:         "USD",
		PaymentMethodRef: "pm_123",
		ReturnURL:        "https://shop.example/return",
	}
}

// --- tests ---

func TestCreate_Success(t *testing.T) {
	creator := newFakeCreator()
	proc := newFakeProcessor()
	a := New(activeCampaigns(), creator, proc)

	result, err := a.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ReservationID == "" || result.ClientConfirmationSecret == "" {
		t.Fatalf("incomplete result: %+v", result)
	}

	r, ok := creator.created[result.ReservationID]
	if !ok {
		t.Fatal("reservation not persisted")
	}
	if r.Status != reservations.StatusAuthorized {
		t.Fatalf("expected AUTHORIZED, got %s", r.Status)
	}
	if r.AuthorizationID == "" {
		t.Fatal("authorization reference not recorded")
	}
	if creator.counters["camp-1"] != 1 {
		t.Fatalf("expected counter incremented to 1, got %d", creator.counters["camp-1"])
	}
}

func TestCreate_HoldFailureLeavesNoState(t *testing.T) {
	creator := newFakeCreator()
	proc := newFakeProcessor()
	proc.holdErr = &processor.Error{StatusCode: 402, Code: "card_declined", Message: "declined"}
	a := New(activeCampaigns(), creator, proc)

	_, err := a.Create(context.Background(), validInput())
	if err == nil {
		t.Fatal("expected error when the hold is declined")
	}
	if len(creator.created) != 0 || creator.counters["camp-1"] != 0 {
		t.Fatal("no state may be persisted when hold creation fails")
	}
}

func TestCreate_RetryWithSameReservationIDCreatesOneHold(t *testing.T) {
	creator := newFakeCreator()
	proc := newFakeProcessor()
	a := New(activeCampaigns(), creator, proc)

	in := validInput()
	in.ReservationID = "11111111-2222-4333-8444-555555555555"

	first, err := a.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	// client saw a timeout and retries with the same reservation id
	second, err := a.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}

	if len(proc.holds) != 1 {
		t.Fatalf("expected at most one hold, got %d", len(proc.holds))
	}
	if first.ReservationID != second.ReservationID || first.AuthorizationID != second.AuthorizationID {
		t.Fatal("retry must return the original references")
	}
	if creator.counters["camp-1"] != 1 {
		t.Fatalf("retry must not double-count, counter=%d", creator.counters["camp-1"])
	}
}

func TestCreate_ConcurrentReservationsBothCount(t *testing.T) {
	creator := newFakeCreator()
	proc := newFakeProcessor()
	a := New(activeCampaigns(), creator, proc)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validInput()
			in.BuyerID = "buyer-" + string(rune('a'+i))
			_, errs[i] = a.Create(context.Background(), in)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if creator.counters["camp-1"] != 2 {
		t.Fatalf("expected final count 2 (no lost update), got %d", creator.counters["camp-1"])
	}
}

func TestCreate_UnknownCampaign(t *testing.T) {
	a := New(&fakeCampaigns{items: map[string]campaigns.Campaign{}}, newFakeCreator(), newFakeProcessor())

	in := validInput()
	in.CampaignID = "nope"
	_, err := a.Create(context.Background(), in)
	if !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got: %v", err)
	}
}

func TestCreate_ClosedCampaign(t *testing.T) {
	camp := &fakeCampaigns{items: map[string]campaigns.Campaign{
		"camp-1": {CampaignID: "camp-1", Status: campaigns.StatusReleased},
	}}
	a := New(camp, newFakeCreator(), newFakeProcessor())

	_, err := a.Create(context.Background(), validInput())
	if !errors.Is(err, ErrCampaignClosed) {
		t.Fatalf("expected ErrCampaignClosed, got: %v", err)
	}
}
