package gate

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/clock"
)

func newTestGate(cacheSize int) (*Gate, *clock.Mock) {
	mock := clock.NewMock(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	g := New(Config{Cooldown: time.Second, DedupCacheSize: cacheSize}, mock, zap.NewNop())
	return g, mock
}

func TestAdmitHappyPath(t *testing.T) {
	g, _ := newTestGate(10)
	ok, reason := g.Admit("91981", "msg-1", "hi there")
	if !ok || reason != ReasonAdmitted {
		t.Errorf("Admit = %v/%s, want admitted", ok, reason)
	}
}

func TestDuplicateDropped(t *testing.T) {
	g, mock := newTestGate(10)
	g.Admit("91981", "msg-1", "hi there")
	mock.Advance(5 * time.Second)

	ok, reason := g.Admit("91981", "msg-1", "hi there")
	if ok || reason != ReasonDuplicate {
		t.Errorf("redelivery = %v/%s, want duplicate", ok, reason)
	}
}

func TestCooldownDropsRapidRepeat(t *testing.T) {
	g, mock := newTestGate(10)
	g.Admit("91981", "msg-1", "hi")

	mock.Advance(300 * time.Millisecond)
	if ok, reason := g.Admit("91981", "msg-2", "hi again"); ok || reason != ReasonCooldown {
		t.Errorf("rapid repeat = %v/%s, want cooldown", ok, reason)
	}

	mock.Advance(800 * time.Millisecond)
	if ok, _ := g.Admit("91981", "msg-3", "hi again"); !ok {
		t.Error("message after cooldown should pass")
	}
}

func TestCooldownIsPerUser(t *testing.T) {
	g, mock := newTestGate(10)
	g.Admit("91981", "msg-1", "hi")
	mock.Advance(100 * time.Millisecond)

	if ok, _ := g.Admit("91777", "msg-2", "hello"); !ok {
		t.Error("a different user is not throttled by the first user's cooldown")
	}
}

func TestSelfEchoDropped(t *testing.T) {
	g, _ := newTestGate(10)

	echoes := []string{
		"Hello! Welcome to Unravel Experience ✈️",
		"Great! I'd be happy to help you book A Week with Santa.",
		"*Booking Summary*\nName: Asha",
		"If you're ready to proceed with booking, reply \"ready\".",
		"All details collected! Reply with \"finalize\" to submit.",
	}
	for _, text := range echoes {
		if ok, reason := g.Admit("91981", "", text); ok || reason != ReasonSelfEcho {
			t.Errorf("echo %q = %v/%s, want self_echo", text, ok, reason)
		}
	}

	if ok, _ := g.Admit("91981", "msg-1", "I am ready for this package"); !ok {
		t.Error("a genuine user reply must not trip the echo guard")
	}
}

func TestEmptyDropped(t *testing.T) {
	g, _ := newTestGate(10)
	for _, text := range []string{"", "   ", "\n\t"} {
		if ok, reason := g.Admit("91981", "msg-1", text); ok || reason != ReasonEmpty {
			t.Errorf("empty %q = %v/%s, want empty", text, ok, reason)
		}
	}
}

func TestDerivedIDDedups(t *testing.T) {
	g, _ := newTestGate(10)
	// No transport id: same sender, instant, and text collapse to one id.
	if ok, _ := g.Admit("91981", "", "double send"); !ok {
		t.Fatal("first delivery should pass")
	}
	if ok, reason := g.Admit("91981", "", "double send"); ok || reason != ReasonDuplicate {
		t.Errorf("same-instant redelivery = %v/%s, want duplicate", ok, reason)
	}
}

func TestDedupCacheEvictsOldest(t *testing.T) {
	g, mock := newTestGate(3)

	for i := 0; i < 4; i++ {
		g.Admit("91981", fmt.Sprintf("msg-%d", i), "hello")
		mock.Advance(2 * time.Second)
	}

	// msg-0 was evicted, so its redelivery passes the dedup check.
	if ok, _ := g.Admit("91981", "msg-0", "hello"); !ok {
		t.Error("evicted id should be admitted again")
	}
	if ok, reason := g.Admit("91981", "msg-3", "hello"); ok || reason != ReasonDuplicate {
		t.Errorf("recent id = %v/%s, want duplicate", ok, reason)
	}
}
