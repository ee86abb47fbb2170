package component

import (
	"context"
	"errors"
	"testing"
)

type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Start(ctx context.Context) error {
	*f.events = append(*f.events, "start:"+f.name)
	return f.startErr
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	*f.events = append(*f.events, "stop:"+f.name)
	return f.stopErr
}

func (f *fakeComponent) Health(ctx context.Context) Health {
	return Health{Name: f.name, Status: StatusHealthy}
}

func TestRegistry_StartStopOrder(t *testing.T) {
	var events []string
	r := NewRegistry(nil)

	for _, name := range []string{"a", "b", "c"} {
		if err := r.Register(&fakeComponent{name: name, events: &events}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	ctx := context.Background()
	if err := r.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if err := r.StopAll(ctx); err != nil {
		t.Fatalf("StopAll: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	var events []string
	r := NewRegistry(nil)

	if err := r.Register(&fakeComponent{name: "a", events: &events}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&fakeComponent{name: "a", events: &events}); err == nil {
		t.Error("expected error registering duplicate name")
	}
}

func TestRegistry_StartFailureStopsEarly(t *testing.T) {
	var events []string
	r := NewRegistry(nil)

	_ = r.Register(&fakeComponent{name: "a", events: &events})
	_ = r.Register(&fakeComponent{name: "b", events: &events, startErr: errors.New("boom")})
	_ = r.Register(&fakeComponent{name: "c", events: &events})

	ctx := context.Background()
	if err := r.StartAll(ctx); err == nil {
		t.Fatal("expected StartAll error")
	}

	// c never started; StopAll unwinds only a.
	if err := r.StopAll(ctx); err != nil {
		t.Fatalf("StopAll: %v", err)
	}

	want := []string{"start:a", "start:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestRegistry_StopAllCollectsErrors(t *testing.T) {
	var events []string
	r := NewRegistry(nil)

	_ = r.Register(&fakeComponent{name: "a", events: &events, stopErr: errors.New("a failed")})
	_ = r.Register(&fakeComponent{name: "b", events: &events})

	ctx := context.Background()
	if err := r.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}

	err := r.StopAll(ctx)
	if err == nil {
		t.Fatal("expected StopAll error")
	}

	// Both components were still stopped.
	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestRegistry_StopAllIdempotent(t *testing.T) {
	var events []string
	r := NewRegistry(nil)

	_ = r.Register(&fakeComponent{name: "a", events: &events})

	ctx := context.Background()
	_ = r.StartAll(ctx)
	_ = r.StopAll(ctx)
	_ = r.StopAll(ctx)

	want := []string{"start:a", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("second StopAll re-stopped components: %v", events)
	}
}

func TestRegistry_GetAndHealth(t *testing.T) {
	var events []string
	r := NewRegistry(nil)

	_ = r.Register(&fakeComponent{name: "a", events: &events})
	_ = r.Register(&fakeComponent{name: "b", events: &events})

	if c := r.Get("b"); c == nil || c.Name() != "b" {
		t.Errorf("Get(b) = %v", c)
	}
	if c := r.Get("missing"); c != nil {
		t.Errorf("Get(missing) = %v, want nil", c)
	}

	health := r.HealthAll(context.Background())
	if len(health) != 2 {
		t.Fatalf("HealthAll returned %d entries", len(health))
	}
	if health[0].Name != "a" || health[0].Status != StatusHealthy {
		t.Errorf("unexpected health entry: %+v", health[0])
	}
}
