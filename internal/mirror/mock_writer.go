package mirror

import (
	"fmt"
	"sync"
	"time"
)

// WriteCall records one write issued against a MockWriter.
type WriteCall struct {
	Kind      JobKind
	ThreadID  int // create target
	MessageID int // edit target, or assigned ID for creates
	Payload   string
}

// MockWriter implements ForumWriter for testing. It records every write in
// issue order and can simulate failures and per-call transport latency.
type MockWriter struct {
	mu       sync.Mutex
	calls    []WriteCall
	nextID   int
	failNext int           // fail this many upcoming calls
	latency  time.Duration // sleep before completing each call
}

// NewMockWriter creates a MockWriter whose created messages get IDs 1001+.
func NewMockWriter() *MockWriter {
	return &MockWriter{nextID: 1000}
}

// FailNext makes the next n writes return an error.
func (m *MockWriter) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// SetLatency simulates transport latency on every subsequent call.
func (m *MockWriter) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Create records a create write and returns a fresh message ID.
func (m *MockWriter) Create(threadID int, text string) (int, error) {
	m.mu.Lock()
	latency := m.latency
	m.mu.Unlock()
	if latency > 0 {
		time.Sleep(latency)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return 0, fmt.Errorf("mock writer: create failed")
	}
	m.nextID++
	m.calls = append(m.calls, WriteCall{Kind: JobCreate, ThreadID: threadID, MessageID: m.nextID, Payload: text})
	return m.nextID, nil
}

// Edit records an edit write.
func (m *MockWriter) Edit(messageID int, text string) error {
	m.mu.Lock()
	latency := m.latency
	m.mu.Unlock()
	if latency > 0 {
		time.Sleep(latency)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return fmt.Errorf("mock writer: edit failed")
	}
	m.calls = append(m.calls, WriteCall{Kind: JobEdit, MessageID: messageID, Payload: text})
	return nil
}

// Calls returns a copy of all recorded writes in issue order.
func (m *MockWriter) Calls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WriteCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded writes.
func (m *MockWriter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
