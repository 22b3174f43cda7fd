// README: Ride lifecycle tests (transition table, book folding, guarded service calls).
package ride

import (
	"context"
	"errors"
	"sync"
	"testing"

	"myride/internal/types"
)

// TestCanTransition verifies the state machine transition table.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy path
		{StatusRequested, StatusAccepted, true},
		{StatusAccepted, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		// cancels
		{StatusRequested, StatusCancelled, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, false},
		// terminal states have no outgoing transitions
		{StatusCompleted, StatusRequested, false},
		{StatusCancelled, StatusAccepted, false},
		// skipping and going back
		{StatusRequested, StatusInProgress, false},
		{StatusRequested, StatusCompleted, false},
		{StatusInProgress, StatusAccepted, false},
		{StatusAccepted, StatusAccepted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestReachable(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusRequested, StatusCompleted, true},
		{StatusRequested, StatusInProgress, true},
		{StatusAccepted, StatusCompleted, true},
		{StatusInProgress, StatusAccepted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusAccepted, StatusAccepted, false},
	}
	for _, tc := range cases {
		if got := Reachable(tc.from, tc.to); got != tc.want {
			t.Errorf("Reachable(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("progress"); err != nil || s != StatusInProgress {
		t.Errorf("ParseStatus(progress) = %q, %v", s, err)
	}
	if s, err := ParseStatus("accepted"); err != nil || s != StatusAccepted {
		t.Errorf("ParseStatus(accepted) = %q, %v", s, err)
	}
	if _, err := ParseStatus("teleported"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestBookApply(t *testing.T) {
	cases := []struct {
		name    string
		current Status
		next    Status
		want    Outcome
		final   Status
	}{
		{"forward", StatusRequested, StatusAccepted, OutcomeApplied, StatusAccepted},
		{"skip ahead", StatusRequested, StatusInProgress, OutcomeApplied, StatusInProgress},
		{"duplicate", StatusAccepted, StatusAccepted, OutcomeDuplicate, StatusAccepted},
		{"backward", StatusInProgress, StatusAccepted, OutcomeStale, StatusInProgress},
		{"out of terminal", StatusCompleted, StatusInProgress, OutcomeStale, StatusCompleted},
		{"cancel after start", StatusInProgress, StatusCancelled, OutcomeStale, StatusInProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBook()
			b.Load([]Ride{{ID: "r1", Status: tc.current}})
			_, out := b.Apply(Ride{ID: "r1", Status: tc.next})
			if out != tc.want {
				t.Errorf("outcome = %s, want %s", out, tc.want)
			}
			r, _ := b.Get("r1")
			if r.Status != tc.final {
				t.Errorf("status = %s, want %s", r.Status, tc.final)
			}
		})
	}
}

func TestBookApply_UnknownRide(t *testing.T) {
	b := NewBook()
	if _, out := b.Apply(Ride{ID: "ghost", Status: StatusAccepted}); out != OutcomeUnknown {
		t.Fatalf("outcome = %s, want unknown", out)
	}
	if len(b.List()) != 0 {
		t.Fatal("unknown ride was inserted")
	}
}

func TestBookLoad_KeepsOrderAndNeverRegresses(t *testing.T) {
	b := NewBook()
	b.Load([]Ride{{ID: "a", Status: StatusRequested}, {ID: "b", Status: StatusInProgress}})
	b.Load([]Ride{{ID: "b", Status: StatusAccepted}, {ID: "c", Status: StatusRequested}})
	list := b.List()
	if len(list) != 3 || list[0].ID != "a" || list[1].ID != "b" || list[2].ID != "c" {
		t.Fatalf("list = %+v", list)
	}
	if list[1].Status != StatusInProgress {
		t.Fatalf("b regressed to %s", list[1].Status)
	}
}

func TestSummarize(t *testing.T) {
	d := types.ID("d1")
	rides := []Ride{
		{ID: "1", Status: StatusCompleted, Fare: 120},
		{ID: "2", Status: StatusCancelled, Fare: 999},
		{ID: "3", Status: StatusAccepted, DriverID: &d, Fare: 300},
		{ID: "4", Status: StatusCompleted, Fare: 80.5},
		{ID: "5", Status: StatusRequested},
	}
	s := Summarize(rides)
	if s.TotalRides != 5 || s.Completed != 2 || s.Earnings != 200.5 {
		t.Errorf("summary = %+v", s)
	}
	if s.Active == nil || s.Active.ID != "3" {
		t.Errorf("active = %+v, want ride 3", s.Active)
	}
}

// fakeAPI records calls and echoes the requested status.
type fakeAPI struct {
	mu       sync.Mutex
	calls    int
	err      error
	rides    []Ride
	lastBody string
	// noEcho makes the mutating calls succeed with an empty body
	noEcho bool
}

func (f *fakeAPI) Accept(ctx context.Context, rideID, driverID types.ID) (Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastBody = string(rideID) + ":" + string(driverID)
	if f.err != nil || f.noEcho {
		return Ride{}, f.err
	}
	return Ride{ID: rideID, DriverID: &driverID, Status: StatusAccepted}, nil
}

func (f *fakeAPI) UpdateStatus(ctx context.Context, rideID types.ID, status Status) (Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastBody = string(rideID) + ":" + string(status)
	if f.err != nil || f.noEcho {
		return Ride{}, f.err
	}
	return Ride{ID: rideID, Status: status}, nil
}

func (f *fakeAPI) DriverRides(ctx context.Context, driverID types.ID) ([]Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rides, f.err
}

func (f *fakeAPI) RiderRides(ctx context.Context, riderID types.ID) ([]Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rides, f.err
}

func newDriver(t *testing.T, api *fakeAPI, rides ...Ride) *Service {
	t.Helper()
	api.rides = rides
	svc := NewService(api, nil, ActorDriver, "d1", nil)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return svc
}

func TestServiceFlowHappyPath(t *testing.T) {
	api := &fakeAPI{}
	svc := newDriver(t, api, Ride{ID: "r1", RiderID: "u1", Status: StatusRequested, Fare: 450})
	ctx := context.Background()

	steps := []struct {
		do   func(context.Context, types.ID) (Ride, error)
		want Status
	}{
		{svc.Accept, StatusAccepted},
		{svc.Start, StatusInProgress},
		{svc.Complete, StatusCompleted},
	}
	for _, st := range steps {
		r, err := st.do(ctx, "r1")
		if err != nil {
			t.Fatalf("transition to %s: %v", st.want, err)
		}
		if r.Status != st.want {
			t.Fatalf("status = %s, want %s", r.Status, st.want)
		}
	}
	r, _ := svc.Book().Get("r1")
	if r.DriverID == nil || *r.DriverID != "d1" || r.Fare != 450 {
		t.Fatalf("ride = %+v", r)
	}
}

func TestServiceGuardBeforeNetwork(t *testing.T) {
	d := types.ID("d1")
	api := &fakeAPI{}
	svc := newDriver(t, api, Ride{ID: "r1", Status: StatusCompleted, DriverID: &d})

	_, err := svc.Start(context.Background(), "r1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if api.calls != 0 {
		t.Fatalf("ride api called %d times for an illegal transition", api.calls)
	}
	if _, err := svc.Start(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestServiceForbiddenActor(t *testing.T) {
	api := &fakeAPI{rides: []Ride{{ID: "r1", RiderID: "u1", Status: StatusRequested}}}
	rider := NewService(api, nil, ActorRider, "u1", nil)
	if _, err := rider.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := rider.Accept(context.Background(), "r1"); !errors.Is(err, ErrForbiddenActor) {
		t.Fatalf("rider accept err = %v, want ErrForbiddenActor", err)
	}

	other := NewService(api, nil, ActorRider, "u2", nil)
	other.Book().Load(api.rides)
	if _, err := other.Cancel(context.Background(), "r1"); !errors.Is(err, ErrForbiddenActor) {
		t.Fatalf("foreign rider cancel err = %v, want ErrForbiddenActor", err)
	}

	r, err := rider.Cancel(context.Background(), "r1")
	if err != nil || r.Status != StatusCancelled {
		t.Fatalf("rider cancel = %+v, %v", r, err)
	}
	if api.calls != 1 {
		t.Fatalf("api calls = %d, want 1", api.calls)
	}
}

func TestServiceDriverSingleActiveRide(t *testing.T) {
	d := types.ID("d1")
	api := &fakeAPI{}
	svc := newDriver(t, api,
		Ride{ID: "busy", Status: StatusInProgress, DriverID: &d},
		Ride{ID: "next", Status: StatusRequested},
	)
	if _, err := svc.Accept(context.Background(), "next"); !errors.Is(err, ErrActiveRide) {
		t.Fatalf("err = %v, want ErrActiveRide", err)
	}
	if api.calls != 0 {
		t.Fatal("ride api called while driver was busy")
	}
}

func TestServiceBackendErrorLeavesStateUnchanged(t *testing.T) {
	api := &fakeAPI{}
	svc := newDriver(t, api, Ride{ID: "r1", Status: StatusRequested})
	api.err = &BackendError{StatusCode: 409, Message: "Ride already taken"}

	_, err := svc.Accept(context.Background(), "r1")
	var be *BackendError
	if !errors.As(err, &be) || be.Message != "Ride already taken" {
		t.Fatalf("err = %v, want backend message verbatim", err)
	}
	r, _ := svc.Book().Get("r1")
	if r.Status != StatusRequested || r.DriverID != nil {
		t.Fatalf("local ride changed after failure: %+v", r)
	}
}

func TestServiceConcurrentAccept(t *testing.T) {
	api := &fakeAPI{}
	svc := newDriver(t, api, Ride{ID: "r1", Status: StatusRequested})

	const n = 5
	errs := make(chan error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Accept(context.Background(), "r1")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful accept, got %d", success)
	}
	if api.calls != 1 {
		t.Fatalf("api calls = %d, want 1", api.calls)
	}
}

func TestServiceTransitionWithoutEchoReloads(t *testing.T) {
	d1 := types.ID("d1")
	tests := []struct {
		name    string
		listing Ride
		want    Status
	}{
		{"backend moved", Ride{ID: "r1", RiderID: "u1", DriverID: &d1, Status: StatusAccepted}, StatusAccepted},
		{"backend did not move", Ride{ID: "r1", RiderID: "u1", Status: StatusRequested}, StatusRequested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			svc := newDriver(t, api, Ride{ID: "r1", RiderID: "u1", Status: StatusRequested})
			api.noEcho = true
			api.rides = []Ride{tt.listing}

			r, err := svc.Accept(context.Background(), "r1")
			if err != nil {
				t.Fatalf("Accept: %v", err)
			}
			if r.Status != tt.want {
				t.Fatalf("status = %s, want %s", r.Status, tt.want)
			}
			if got, _ := svc.Book().Get("r1"); got.Status != tt.want {
				t.Fatalf("book status = %s, want %s", got.Status, tt.want)
			}
		})
	}
}
