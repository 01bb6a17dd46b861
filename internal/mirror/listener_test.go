package mirror

import (
	"strings"
	"testing"

	"github.com/taxiline/taxiline/internal/districts"
)

func newTestListener(t *testing.T, writer *MockWriter, opts ListenerOpts) (*Listener, *Engine) {
	t.Helper()
	store := districts.NewStore(testTable())
	e := newTestEngine(t, writer, EngineOpts{Tables: store})
	opts.Classifier = NewClassifier(store)
	opts.Engine = e
	opts.Out = &strings.Builder{}
	l, err := NewListener(opts)
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	return l, e
}

func TestListener_AcceptsOrder(t *testing.T) {
	l, e := newTestListener(t, NewMockWriter(), ListenerOpts{})
	if !l.Accept(orderText, -100111, 1, "Alpha") {
		t.Fatal("valid order was rejected")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(e.queue))
	}
	if ev := e.queue[0]; ev.District != "central" || ev.ChannelTitle != "Alpha" {
		t.Errorf("enqueued event = %+v", ev)
	}
}

func TestListener_RejectsShortText(t *testing.T) {
	l, _ := newTestListener(t, NewMockWriter(), ListenerOpts{})
	if l.Accept("Москва срочно", -100111, 1, "Alpha") {
		t.Error("short message should be rejected")
	}
	// Rune count, not bytes: 19 Cyrillic runes is still too short.
	if l.Accept(strings.Repeat("м", 19), -100111, 1, "Alpha") {
		t.Error("19 runes should fall below the default threshold")
	}
	if !l.Accept(orderText, -100111, 1, "Alpha") {
		t.Error("full order text should pass the length filter")
	}
}

func TestListener_RejectsIgnoredChannel(t *testing.T) {
	l, _ := newTestListener(t, NewMockWriter(), ListenerOpts{Ignore: []int64{-100999}})
	if l.Accept(orderText, -100999, 1, "OwnForum") {
		t.Error("ignored channel should be rejected")
	}
	if !l.Accept(orderText, -100111, 1, "Alpha") {
		t.Error("non-ignored channel should pass")
	}
}

func TestListener_RejectsBlacklistedAndUnmatched(t *testing.T) {
	l, e := newTestListener(t, NewMockWriter(), ListenerOpts{})
	if l.Accept("Продам зимнюю резину, Москва, самовывоз", -100111, 1, "Alpha") {
		t.Error("blacklisted message should be rejected")
	}
	if l.Accept("Владивосток - Хабаровск, 3 пассажира, завтра утром", -100111, 2, "Alpha") {
		t.Error("message with no district keyword should be rejected")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) != 0 {
		t.Errorf("rejected messages leaked into the queue: %d", len(e.queue))
	}
}

func TestNewListener_Validation(t *testing.T) {
	if _, err := NewListener(ListenerOpts{}); err == nil {
		t.Error("expected error for missing classifier")
	}
	store := districts.NewStore(testTable())
	if _, err := NewListener(ListenerOpts{Classifier: NewClassifier(store)}); err == nil {
		t.Error("expected error for missing engine")
	}
}
