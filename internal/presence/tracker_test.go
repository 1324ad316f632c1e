package presence

import (
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRegisterTouchUnregister(t *testing.T) {
	tr := NewTracker(30*time.Second, zerolog.Nop())

	tr.Register("alice", "c1")
	if !tr.IsOnline("alice") {
		t.Fatal("alice should be online")
	}
	if !tr.Touch("alice", "c1") {
		t.Fatal("touch should succeed for a tracked connection")
	}
	if tr.Touch("alice", "c2") {
		t.Fatal("touch should fail for an untracked connection")
	}
	if tr.Touch("bob", "c1") {
		t.Fatal("touch should fail for an unknown user")
	}

	tr.Unregister("alice", "c1")
	if tr.IsOnline("alice") {
		t.Fatal("alice should be offline after last device")
	}
}

func TestMultiDeviceAggregation(t *testing.T) {
	tr := NewTracker(30*time.Second, zerolog.Nop())
	tr.Register("alice", "c1")
	tr.Register("alice", "c2")

	tr.Unregister("alice", "c1")
	if !tr.IsOnline("alice") {
		t.Fatal("alice still has a device online")
	}
	tr.Unregister("alice", "c2")
	if tr.IsOnline("alice") {
		t.Fatal("alice should be offline")
	}
}

func TestOnlineUsersSorted(t *testing.T) {
	tr := NewTracker(30*time.Second, zerolog.Nop())
	tr.Register("carol", "c3")
	tr.Register("alice", "c1")
	tr.Register("bob", "c2")

	if got := tr.OnlineUsers(); !reflect.DeepEqual(got, []string{"alice", "bob", "carol"}) {
		t.Fatalf("online users = %v, want sorted [alice bob carol]", got)
	}
}

func TestPruneStale(t *testing.T) {
	tr := NewTracker(30*time.Second, zerolog.Nop())
	tr.Register("alice", "c1")
	tr.Register("bob", "c2")

	// Nothing is stale right away.
	if pruned := tr.PruneStale(time.Now()); len(pruned) != 0 {
		t.Fatalf("pruned %v, want none", pruned)
	}

	// Pretend an hour passed with no heartbeats: everything is stale.
	pruned := tr.PruneStale(time.Now().Add(time.Hour))
	if len(pruned) != 2 {
		t.Fatalf("pruned %d connections, want 2", len(pruned))
	}
	if tr.IsOnline("alice") || tr.IsOnline("bob") {
		t.Fatal("stale users should be offline after prune")
	}
}

func TestTouchPreventsPrune(t *testing.T) {
	tr := NewTracker(50*time.Millisecond, zerolog.Nop())
	tr.Register("alice", "c1")
	tr.Register("alice", "c2")

	time.Sleep(30 * time.Millisecond)
	tr.Touch("alice", "c1")

	pruned := tr.PruneStale(time.Now().Add(30 * time.Millisecond))
	if len(pruned) != 1 || pruned[0].ConnID != "c2" {
		t.Fatalf("pruned = %v, want only c2", pruned)
	}
	if !tr.IsOnline("alice") {
		t.Fatal("alice should stay online via the touched device")
	}
}
