package trace

import (
	"fmt"
	"testing"
)

func TestCollectorBuffers(t *testing.T) {
	c := NewCollector(100)
	if c.Session() == "" {
		t.Error("empty session ID")
	}
	c.Add(NewEvent(Resolve, "Alpha", "via=name"))
	c.Add(NewEvent(Forward, "Alpha", ""))

	events := c.Snapshot()
	if len(events) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(events))
	}
	if events[0].Slot != "Alpha" || events[0].PrimaryTag() != "#resolve" {
		t.Errorf("event 0 = %+v", events[0])
	}
}

func TestCollectorBound(t *testing.T) {
	c := NewCollector(10)
	for i := 0; i < 25; i++ {
		c.Add(NewEvent(Forward, fmt.Sprintf("s%d", i), ""))
	}
	if c.Len() != 10 {
		t.Fatalf("len = %d, want bound 10", c.Len())
	}
	if got := c.Snapshot()[0].Slot; got != "s15" {
		t.Errorf("oldest kept = %q, want s15", got)
	}
}

func TestSubscribe(t *testing.T) {
	c := NewCollector(10)
	ch := c.Subscribe()
	c.Add(NewEvent(Callback, "Beta", ""))
	select {
	case e := <-ch:
		if e.Slot != "Beta" {
			t.Errorf("got %q", e.Slot)
		}
	default:
		t.Fatal("subscriber did not receive event")
	}
}

func TestTags(t *testing.T) {
	e := NewEvent(Resolve, "X", "")
	e.Tags.Add(Fallback)
	e.Tags.Add(Fallback)
	if len(e.Tags) != 2 {
		t.Errorf("duplicate tag added: %v", e.Tags)
	}
	if !e.Tags.Has(Fallback) || e.Tags.Primary() != Resolve {
		t.Error("tag helpers broken")
	}
	e.Annotate("via", "ordinal")
	if e.Annotations.Get("via") != "ordinal" {
		t.Error("annotation lost")
	}
}
