package preflight

import (
	"testing"
	"time"
)

func TestFailureMemory(t *testing.T) {
	m := newFailureMemory(50 * time.Millisecond)
	defer m.stop()

	if _, failed := m.get("example.com"); failed {
		t.Fatal("fresh memory should hold nothing")
	}

	m.set("example.com", "connection refused")
	reason, failed := m.get("example.com")
	if !failed {
		t.Fatal("host should be remembered right after set")
	}
	if reason != "connection refused" {
		t.Errorf("reason = %q, want %q", reason, "connection refused")
	}

	// Unrelated hosts stay clean.
	if _, failed := m.get("other.com"); failed {
		t.Error("unrelated host should not be remembered")
	}

	time.Sleep(70 * time.Millisecond)
	if _, failed := m.get("example.com"); failed {
		t.Error("entry should expire after the TTL")
	}
}
