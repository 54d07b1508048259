package scan

import (
	"context"
	"errors"
	"testing"
)

// fastListener returns a listener with no inter-poll delay.
func fastListener(client DeviceClient) *Listener {
	l := NewListener(client, testLogger())
	l.pollInterval = 0
	return l
}

// compScript returns a compFn serving the given kinds in order, repeating
// the last one once exhausted.
func compScript(kinds ...CompletionKind) func(context.Context, string) (CompletionKind, error) {
	i := 0
	return func(context.Context, string) (CompletionKind, error) {
		k := kinds[min(i, len(kinds)-1)]
		i++
		return k, nil
	}
}

func TestWaitScanRequestProceeds(t *testing.T) {
	for _, kind := range []CompletionKind{CompScanRequested, CompScanNewPageRequested} {
		mock := &mockDevice{compFn: compScript(CompHostSelected, CompHostSelected, kind)}
		proceed, err := fastListener(mock).WaitScanRequest(context.Background(), "/comp")
		if err != nil {
			t.Fatalf("WaitScanRequest(%s): %v", kind, err)
		}
		if !proceed {
			t.Errorf("expected proceed=true for %s", kind)
		}
	}
}

func TestWaitScanRequestPagesComplete(t *testing.T) {
	mock := &mockDevice{compFn: compScript(CompScanPagesComplete)}
	proceed, err := fastListener(mock).WaitScanRequest(context.Background(), "/comp")
	if err != nil {
		t.Fatalf("WaitScanRequest: %v", err)
	}
	if proceed {
		t.Error("expected proceed=false on ScanPagesComplete")
	}
}

func TestWaitScanRequestUnknownKind(t *testing.T) {
	mock := &mockDevice{compFn: compScript(CompletionKind("FirmwareSurprise"))}
	proceed, err := fastListener(mock).WaitScanRequest(context.Background(), "/comp")
	if err != nil {
		t.Fatalf("WaitScanRequest: %v", err)
	}
	if proceed {
		t.Error("expected proceed=false on unknown kind")
	}
}

func TestWaitScanRequestFallthroughProceeds(t *testing.T) {
	calls := 0
	mock := &mockDevice{compFn: func(context.Context, string) (CompletionKind, error) {
		calls++
		return CompHostSelected, nil
	}}
	proceed, err := fastListener(mock).WaitScanRequest(context.Background(), "/comp")
	if err != nil {
		t.Fatalf("WaitScanRequest: %v", err)
	}
	if !proceed {
		t.Error("expected proceed=true after exhausting the attempt budget")
	}
	if calls != scanRequestAttempts {
		t.Errorf("expected %d polls, got %d", scanRequestAttempts, calls)
	}
}

func TestWaitScanNewPageRequest(t *testing.T) {
	cases := []struct {
		name  string
		kinds []CompletionKind
		want  bool
	}{
		{"new page after settle", []CompletionKind{CompScanRequested, CompScanNewPageRequested}, true},
		{"pages complete", []CompletionKind{CompScanPagesComplete}, false},
		{"unknown kind", []CompletionKind{CompletionKind("Odd")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockDevice{compFn: compScript(tc.kinds...)}
			got, err := fastListener(mock).WaitScanNewPageRequest(context.Background(), "/comp")
			if err != nil {
				t.Fatalf("WaitScanNewPageRequest: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWaitForScanEventFiltersAndResumes(t *testing.T) {
	const destRef = "/WalkupScanToComp/WalkupScanToCompDestinations/1a2b"

	call := 0
	mock := &mockDevice{eventsFn: func(_ context.Context, etag string, _ int) (EventTable, error) {
		call++
		switch call {
		case 1:
			if etag != "tag-0" {
				t.Errorf("first poll etag = %q, want tag-0", etag)
			}
			// Unrelated entries: a power event and a scan event for
			// someone else's destination.
			return EventTable{Etag: "tag-1", Events: []Event{
				{Category: "PoweringDownEvent"},
				{Category: CategoryScan, DestinationRef: "/WalkupScanToComp/WalkupScanToCompDestinations/ffff"},
			}}, nil
		default:
			if etag != "tag-1" {
				t.Errorf("second poll etag = %q, want tag-1", etag)
			}
			return EventTable{Etag: "tag-2", Events: []Event{
				{Category: CategoryScan, DestinationRef: destRef, CompletionRef: "/comp"},
			}}, nil
		}
	}}

	ev, err := fastListener(mock).WaitForScanEvent(context.Background(), destRef, "tag-0")
	if err != nil {
		t.Fatalf("WaitForScanEvent: %v", err)
	}
	if ev.DestinationRef != destRef {
		t.Errorf("destination ref = %q", ev.DestinationRef)
	}
	if ev.Etag != "tag-2" {
		t.Errorf("event etag = %q, want tag-2", ev.Etag)
	}
	if call != 2 {
		t.Errorf("expected 2 polls, got %d", call)
	}
}

func TestWaitForDestination(t *testing.T) {
	call := 0
	mock := &mockDevice{destFn: func(context.Context, string) (*Destination, error) {
		call++
		if call < 3 {
			return &Destination{}, nil
		}
		return &Destination{Shortcut: ShortcutSavePDF, PlexMode: PlexSimplex}, nil
	}}

	dest, err := fastListener(mock).WaitForDestination(context.Background(), "/dest")
	if err != nil {
		t.Fatalf("WaitForDestination: %v", err)
	}
	if dest.Shortcut != ShortcutSavePDF {
		t.Errorf("shortcut = %q", dest.Shortcut)
	}
}

func TestWaitForDestinationTimesOut(t *testing.T) {
	calls := 0
	mock := &mockDevice{destFn: func(context.Context, string) (*Destination, error) {
		calls++
		return &Destination{}, nil
	}}

	_, err := fastListener(mock).WaitForDestination(context.Background(), "/dest")
	if !errors.Is(err, ErrDestinationTimeout) {
		t.Fatalf("expected ErrDestinationTimeout, got %v", err)
	}
	if calls != destinationAttempts {
		t.Errorf("expected %d polls, got %d", destinationAttempts, calls)
	}
}
