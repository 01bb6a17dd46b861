package mirror

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// defaultMinTextLen is the minimum admitted text length. Shorter messages
// are ads, reactions, or fragments, never orders.
const defaultMinTextLen = 20

// Listener filters raw source-channel messages and hands admitted ones to
// the engine. Each source channel's updates may arrive on its own goroutine;
// the hand-off into the engine queue is the only shared step.
type Listener struct {
	classifier *Classifier
	engine     *Engine
	minLen     int
	ignore     map[int64]bool
	out        io.Writer
}

// ListenerOpts holds parameters for creating a Listener.
type ListenerOpts struct {
	Classifier *Classifier
	Engine     *Engine
	MinTextLen int     // default 20
	Ignore     []int64 // channel IDs to drop (own forum, known spammers)
	Out        io.Writer
}

// NewListener creates a Listener.
func NewListener(opts ListenerOpts) (*Listener, error) {
	if opts.Classifier == nil {
		return nil, fmt.Errorf("mirror: listener: classifier is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("mirror: listener: engine is required")
	}
	minLen := opts.MinTextLen
	if minLen <= 0 {
		minLen = defaultMinTextLen
	}
	ignore := make(map[int64]bool, len(opts.Ignore))
	for _, id := range opts.Ignore {
		ignore[id] = true
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Listener{
		classifier: opts.Classifier,
		engine:     opts.Engine,
		minLen:     minLen,
		ignore:     ignore,
		out:        out,
	}, nil
}

// Accept filters one inbound message and enqueues it when it looks like an
// order: long enough, not from an ignored channel, no blacklist term, and at
// least one district keyword. Returns true if the message was enqueued.
func (l *Listener) Accept(text string, channelID int64, messageID int, channelTitle string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < l.minLen {
		return false
	}
	if l.ignore[channelID] {
		return false
	}
	cls := l.classifier.Classify(text)
	if cls.Blocked || len(cls.Matched) == 0 {
		return false
	}
	l.engine.Enqueue(Event{
		Text:         text,
		ChannelID:    channelID,
		MessageID:    messageID,
		ChannelTitle: channelTitle,
		District:     cls.Primary,
	})
	return true
}
