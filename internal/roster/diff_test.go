package roster

import (
	"testing"
	"time"

	"github.com/meetscribe/api/internal/model"
)

func entryNames(events []model.ParticipantEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e.Type) + ":" + e.Participant.ID
	}
	return out
}

func assertEvents(t *testing.T, got []model.ParticipantEvent, want []string) {
	t.Helper()
	gotNames := entryNames(got)
	if len(gotNames) != len(want) {
		t.Fatalf("expected events %v, got %v", want, gotNames)
	}
	for i := range want {
		if gotNames[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, gotNames)
		}
	}
}

func TestDiffJoinAndLeave(t *testing.T) {
	t0 := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	state, events := Diff(State{}, []Entry{{Name: "Alice"}}, t0, false)
	assertEvents(t, events, []string{"joined:alice"})

	t1 := t0.Add(2 * time.Second)
	state, events = Diff(state, []Entry{{Name: "Alice"}, {Name: "Bob"}}, t1, false)
	assertEvents(t, events, []string{"joined:bob"})

	t2 := t1.Add(2 * time.Second)
	state, events = Diff(state, []Entry{{Name: "Bob"}}, t2, false)
	assertEvents(t, events, []string{"left:alice"})

	alice := state["alice"]
	if alice.LeftAt == nil || !alice.LeftAt.Equal(t2) {
		t.Fatalf("expected alice to have left at %v, got %+v", t2, alice.LeftAt)
	}
	if !alice.JoinedAt.Equal(t0) {
		t.Fatalf("expected alice join time %v preserved, got %v", t0, alice.JoinedAt)
	}
}

func TestDiffFlagTransitions(t *testing.T) {
	t0 := time.Now()

	// A participant joining with flags already set produces only a join.
	state, events := Diff(State{}, []Entry{{Name: "Alice", Muted: true, Speaking: true}}, t0, false)
	assertEvents(t, events, []string{"joined:alice"})

	state, events = Diff(state, []Entry{{Name: "Alice", Muted: false, Speaking: false, Presenting: true}}, t0.Add(time.Second), false)
	assertEvents(t, events, []string{"speaking_end:alice", "unmuted:alice", "presenting_start:alice"})

	// Video changes are tracked silently.
	state, events = Diff(state, []Entry{{Name: "Alice", Presenting: true, VideoOn: true}}, t0.Add(2*time.Second), false)
	if len(events) != 0 {
		t.Fatalf("expected no events for a video change, got %v", entryNames(events))
	}
	if !state["alice"].VideoOn {
		t.Fatal("expected video state to be tracked")
	}
}

func TestDiffRejoin(t *testing.T) {
	t0 := time.Now()
	state, _ := Diff(State{}, []Entry{{Name: "Alice"}}, t0, false)
	state, _ = Diff(state, nil, t0.Add(time.Second), false)
	if state["alice"].LeftAt == nil {
		t.Fatal("expected alice to have left")
	}

	state, events := Diff(state, []Entry{{Name: "Alice", Muted: true}}, t0.Add(2*time.Second), false)
	assertEvents(t, events, []string{"joined:alice", "muted:alice"})
	if state["alice"].LeftAt != nil {
		t.Fatal("expected rejoin to clear the departure")
	}
	if !state["alice"].JoinedAt.Equal(t0) {
		t.Fatal("expected rejoin to preserve the original join time")
	}
}

func TestDiffTransientSourceNeverLeaves(t *testing.T) {
	t0 := time.Now()
	state, _ := Diff(State{}, []Entry{{Name: "Alice"}, {Name: "Bob"}}, t0, true)
	state, events := Diff(state, []Entry{{Name: "Bob"}}, t0.Add(time.Second), true)
	if len(events) != 0 {
		t.Fatalf("expected no left events from a transient source, got %v", entryNames(events))
	}
	if state["alice"].LeftAt != nil {
		t.Fatal("expected alice to remain present")
	}
}

func TestDiffDuplicateNames(t *testing.T) {
	t0 := time.Now()
	state, events := Diff(State{}, []Entry{{Name: "Alice", Muted: true}, {Name: "alice", Muted: false}}, t0, false)
	assertEvents(t, events, []string{"joined:alice"})
	if !state["alice"].Muted {
		t.Fatal("expected first snapshot row to win for duplicate names")
	}
}

func TestFinalize(t *testing.T) {
	t0 := time.Now()
	state, _ := Diff(State{}, []Entry{{Name: "Alice"}, {Name: "Bob"}}, t0, false)
	state, _ = Diff(state, []Entry{{Name: "Bob"}}, t0.Add(time.Second), false)

	stop := t0.Add(time.Minute)
	state, events := Finalize(state, stop)
	assertEvents(t, events, []string{"left:bob"})
	if state["bob"].LeftAt == nil || !state["bob"].LeftAt.Equal(stop) {
		t.Fatalf("expected bob to leave at stop time, got %+v", state["bob"].LeftAt)
	}
	// Alice already left; her timestamp must not move.
	if state["alice"].LeftAt.Equal(stop) {
		t.Fatal("expected an earlier departure to be preserved")
	}
}

func TestParticipantID(t *testing.T) {
	cases := map[string]string{
		"Alice Smith":   "alice-smith",
		"  BOB  ":       "bob",
		"j.doe_42":      "j-doe-42",
		"@#$%":          "unknown",
		"Ümit":          "mit",
		"carol-jenkins": "carol-jenkins",
	}
	for in, want := range cases {
		if got := ParticipantID(in); got != want {
			t.Errorf("ParticipantID(%q) = %q, want %q", in, got, want)
		}
	}
}
