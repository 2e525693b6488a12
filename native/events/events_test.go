package events

import (
	"sync"
	"testing"
)

func TestRecorderConcurrentEmitAndSnapshot(t *testing.T) {
	r := &Recorder{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Emit(Event{Type: "hub.added"})
			}
		}()
	}
	readers := make(chan struct{})
	go func() {
		defer close(readers)
		for i := 0; i < 200; i++ {
			for range r.Snapshot() {
			}
		}
	}()
	wg.Wait()
	<-readers

	if got := r.Len(); got != 800 {
		t.Fatalf("recorded %d events, want 800", got)
	}
}

func TestRecorderSnapshotIsACopy(t *testing.T) {
	r := &Recorder{}
	r.Emit(Event{Type: "hub.added", Attributes: map[string]string{"assets": "5"}})

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot length = %d, want 1", len(snap))
	}
	snap[0].Type = "mutated"
	if got := r.Last("hub.added"); got == nil {
		t.Fatalf("mutating the snapshot changed the recorder")
	}
}

func TestRecorderLastReturnsMostRecent(t *testing.T) {
	r := &Recorder{}
	r.Emit(Event{Type: "hub.drawn", Attributes: map[string]string{"assets": "1"}})
	r.Emit(Event{Type: "hub.added", Attributes: map[string]string{"assets": "2"}})
	r.Emit(Event{Type: "hub.drawn", Attributes: map[string]string{"assets": "3"}})

	last := r.Last("hub.drawn")
	if last == nil || last.Attributes["assets"] != "3" {
		t.Fatalf("last drawn event = %+v, want assets=3", last)
	}
	if r.Last("hub.swept") != nil {
		t.Fatalf("expected nil for unseen event type")
	}
}
