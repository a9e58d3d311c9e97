package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	d := NewDebouncer(50*time.Millisecond, 16)
	defer d.Stop()

	d.Add(FileEvent{Path: "novel1/ch1.md", Type: EventAdd, Timestamp: time.Now()})

	select {
	case event := <-d.Output():
		assert.Equal(t, "novel1/ch1.md", event.Path)
		assert.Equal(t, EventAdd, event.Type)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_RapidEventsForSamePath_Coalesce(t *testing.T) {
	d := NewDebouncer(100*time.Millisecond, 16)
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "novel1/ch1.md", Type: EventChange, Timestamp: time.Now()})
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case event := <-d.Output():
		assert.Equal(t, "novel1/ch1.md", event.Path)
		assert.Equal(t, EventChange, event.Type)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced event")
	}

	select {
	case event := <-d.Output():
		t.Fatalf("unexpected second event for %s", event.Path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebouncer_FinalEventTypeWins(t *testing.T) {
	d := NewDebouncer(80*time.Millisecond, 16)
	defer d.Stop()

	d.Add(FileEvent{Path: "novel1/ch1.md", Type: EventChange, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "novel1/ch1.md", Type: EventUnlink, Timestamp: time.Now()})

	select {
	case event := <-d.Output():
		assert.Equal(t, EventUnlink, event.Type)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_AddThenChange_DeliversChange(t *testing.T) {
	d := NewDebouncer(80*time.Millisecond, 16)
	defer d.Stop()

	d.Add(FileEvent{Path: "novel1/ch1.md", Type: EventAdd, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "novel1/ch1.md", Type: EventChange, Timestamp: time.Now()})

	select {
	case event := <-d.Output():
		assert.Equal(t, EventChange, event.Type)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_IndependentPathsDoNotDelayEachOther(t *testing.T) {
	d := NewDebouncer(60*time.Millisecond, 16)
	defer d.Stop()

	d.Add(FileEvent{Path: "novel1/ch1.md", Type: EventChange, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "novel1/ch2.md", Type: EventAdd, Timestamp: time.Now()})

	seen := make(map[string]EventType)
	for i := 0; i < 2; i++ {
		select {
		case event := <-d.Output():
			seen[event.Path] = event.Type
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for debounced events")
		}
	}
	assert.Equal(t, EventChange, seen["novel1/ch1.md"])
	assert.Equal(t, EventAdd, seen["novel1/ch2.md"])
}

func TestDebouncer_StopFlushesPendingAndClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour, 16)

	d.Add(FileEvent{Path: "novel1/ch1.md", Type: EventChange, Timestamp: time.Now()})
	require.Equal(t, 1, d.Pending())

	d.Stop()
	d.Stop() // idempotent

	event, ok := <-d.Output()
	require.True(t, ok, "pending event should be flushed before close")
	assert.Equal(t, "novel1/ch1.md", event.Path)
	assert.Equal(t, EventChange, event.Type)

	_, ok = <-d.Output()
	assert.False(t, ok, "output should be closed")
	assert.Equal(t, 0, d.Pending())
}

func TestDebouncer_AddAfterStopIsIgnored(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, 16)
	d.Stop()

	d.Add(FileEvent{Path: "novel1/ch1.md", Type: EventAdd, Timestamp: time.Now()})
	assert.Equal(t, 0, d.Pending())
}
