// Package mirror collapses taxi-order postings from many source channels
// into one moderated forum, deduplicating near-identical reposts into a
// single edited message per unique order, routed by district.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// defaultDispatchDelay is the pause after every forum write, respecting
// Telegram rate limits.
const defaultDispatchDelay = 50 * time.Millisecond

// Event is one admitted source-channel message handed to the engine. The
// listener has already applied length filtering, the blacklist, and district
// classification.
type Event struct {
	Text         string
	ChannelID    int64
	MessageID    int
	ChannelTitle string
	District     string // primary district key from classification
}

// JobKind discriminates dispatch jobs.
type JobKind string

const (
	// JobCreate posts a new message into a forum thread.
	JobCreate JobKind = "create"
	// JobEdit replaces the text of an existing forum message.
	JobEdit JobKind = "edit"
)

// DispatchJob is one outbound forum write. Jobs are consumed exactly once,
// in FIFO order, by the single worker; a failed job is logged and dropped,
// never retried.
type DispatchJob struct {
	Kind      JobKind
	ThreadID  int    // create target
	MessageID int    // edit target
	Payload   string // full text, always resent whole, never as a delta

	// assign receives the created message ID on a successful create.
	assign func(messageID int)
}

// ForumWriter performs the outbound writes against the destination forum.
type ForumWriter interface {
	// Create posts text into the given thread and returns the new message ID.
	Create(threadID int, text string) (int, error)
	// Edit replaces the text of an existing message.
	Edit(messageID int, text string) error
}

// AllOrders is the subscription key for users who want a notification for
// every order regardless of its district.
const AllOrders = "all"

// SubscriberLookup finds the user subscribed to notifications for a district.
type SubscriberLookup interface {
	FindSubscriber(district string) (int64, bool)
}

// Notifier delivers the best-effort side-channel notification to a user.
type Notifier interface {
	Notify(userID int64, text string) error
}

// LinkFunc renders the clickable reference back to an original source
// message that gets appended to an order's body.
type LinkFunc func(channelTitle string, channelID int64, messageID int) string

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Writer          ForumWriter
	Tables          TableProvider
	AllOrdersThread int              // catch-all branch every order is posted to
	Subscribers     SubscriberLookup // optional; disables notifications when nil
	Notifier        Notifier         // optional; disables notifications when nil
	HistorySize     int              // default 30
	Delay           time.Duration    // post-write pause, default 50ms
	RenderLink      LinkFunc         // default HTMLLink
	Out             io.Writer        // defaults to os.Stdout
}

// Engine owns the dedup history and the dispatch queue. Listeners from many
// source channels enqueue concurrently; a single worker goroutine (Run)
// drains the queue and is the only code that touches the history or issues
// forum writes, so neither needs further locking.
type Engine struct {
	writer     ForumWriter
	tables     TableProvider
	allThread  int
	subs       SubscriberLookup
	notifier   Notifier
	delay      time.Duration
	renderLink LinkFunc
	history    *History
	out        io.Writer

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Writer == nil {
		return nil, fmt.Errorf("mirror: engine: writer is required")
	}
	if opts.Tables == nil {
		return nil, fmt.Errorf("mirror: engine: table provider is required")
	}
	if opts.AllOrdersThread == 0 {
		return nil, fmt.Errorf("mirror: engine: all-orders thread is required")
	}
	delay := opts.Delay
	if delay == 0 {
		delay = defaultDispatchDelay
	}
	renderLink := opts.RenderLink
	if renderLink == nil {
		renderLink = HTMLLink
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	e := &Engine{
		writer:     opts.Writer,
		tables:     opts.Tables,
		allThread:  opts.AllOrdersThread,
		subs:       opts.Subscribers,
		notifier:   opts.Notifier,
		delay:      delay,
		renderLink: renderLink,
		history:    NewHistory(opts.HistorySize),
		out:        out,
	}
	e.cond = sync.NewCond(&e.mu)
	return e, nil
}

// Enqueue appends an event to the dispatch queue. Safe to call from any
// goroutine; events enqueued after Close are dropped.
func (e *Engine) Enqueue(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.queue = append(e.queue, ev)
	e.cond.Signal()
}

// Close stops accepting events. Run returns after draining what is queued.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.cond.Broadcast()
}

// Run is the single consumer loop. It drains events strictly in arrival
// order and blocks until the context is cancelled or Close has been called
// and the queue is empty.
func (e *Engine) Run(ctx context.Context) error {
	fmt.Fprintf(e.out, "mirror: worker started\n")
	stop := context.AfterFunc(ctx, func() {
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
	})
	defer stop()

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed && ctx.Err() == nil {
			e.cond.Wait()
		}
		if ctx.Err() != nil || (e.closed && len(e.queue) == 0) {
			e.mu.Unlock()
			fmt.Fprintf(e.out, "mirror: worker stopped\n")
			return nil
		}
		ev := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.process(ev)
	}
}

// process routes one event: fingerprint, history lookup, then create or
// edit. Runs only on the worker goroutine; the whole read-decide-mutate
// sequence completes without yielding, which is what keeps the history
// consistent without locks.
func (e *Engine) process(ev Event) {
	fp := Fingerprint(ev.Text)
	link := e.renderLink(ev.ChannelTitle, ev.ChannelID, ev.MessageID)
	body := ev.Text + "\n\nИнформация:\n" + link

	// Subscribers hear about every admitted event, even ones the history
	// collapses into an existing post or drops as an exact repost.
	e.notify(ev.District, body)

	if rec := e.history.Lookup(fp); rec != nil {
		e.processDuplicate(ev, rec, link)
		return
	}

	fmt.Fprintf(e.out, "mirror: new order from %q\n", ev.ChannelTitle)

	rec := &OrderRecord{Fingerprint: fp, Body: body}
	rec.addContributor(ev.ChannelTitle)

	jobs := []DispatchJob{{
		Kind:     JobCreate,
		ThreadID: e.allThread,
		Payload:  body,
		assign:   func(id int) { rec.MessageID = id },
	}}
	if d, ok := e.tables.Current().ByKey(ev.District); ok && d.ThreadID != 0 && d.ThreadID != e.allThread {
		jobs = append(jobs, DispatchJob{
			Kind:     JobCreate,
			ThreadID: d.ThreadID,
			Payload:  body,
			assign:   func(id int) { rec.DistrictMessageID = id },
		})
	}
	e.runJobs(jobs)

	// Track the order only if the canonical catch-all post exists; a failed
	// create means the order never appeared, so there is nothing to edit.
	if rec.MessageID != 0 {
		e.history.Insert(rec)
	}
}

// processDuplicate handles a repost of an order already in the history.
func (e *Engine) processDuplicate(ev Event, rec *OrderRecord, link string) {
	if rec.HasContributor(ev.ChannelTitle) {
		// Same channel reposting the same order: idempotent no-op.
		return
	}
	fmt.Fprintf(e.out, "mirror: duplicate order, appending %q\n", ev.ChannelTitle)

	newBody := rec.Body + "\n" + link

	// Optimistic mutation before dispatch. A failed edit leaves the in-memory
	// body ahead of the forum until a later edit resends it in full.
	rec.Body = newBody
	rec.addContributor(ev.ChannelTitle)
	e.history.Touch(rec)

	jobs := []DispatchJob{{Kind: JobEdit, MessageID: rec.MessageID, Payload: newBody}}
	if rec.DistrictMessageID != 0 {
		jobs = append(jobs, DispatchJob{Kind: JobEdit, MessageID: rec.DistrictMessageID, Payload: newBody})
	}
	e.runJobs(jobs)
}

// runJobs issues forum writes strictly in job order, pausing after each
// write. Failures are logged and dropped; the next job still runs.
func (e *Engine) runJobs(jobs []DispatchJob) {
	for _, job := range jobs {
		switch job.Kind {
		case JobCreate:
			id, err := e.writer.Create(job.ThreadID, job.Payload)
			if err != nil {
				log.Printf("mirror: create in thread %d: %v", job.ThreadID, err)
				break
			}
			if job.assign != nil {
				job.assign(id)
			}
		case JobEdit:
			if err := e.writer.Edit(job.MessageID, job.Payload); err != nil {
				log.Printf("mirror: edit message %d: %v", job.MessageID, err)
			}
		}
		if e.delay > 0 {
			time.Sleep(e.delay)
		}
	}
}

// notify sends the rendered message to the district's notification
// subscriber, or to the AllOrders subscriber when the district has none.
// Detached and best-effort: a failure here never aborts routing.
func (e *Engine) notify(district, body string) {
	if e.subs == nil || e.notifier == nil {
		return
	}
	go func() {
		userID, ok := e.subs.FindSubscriber(district)
		if !ok && district != AllOrders {
			// No district subscriber; fall back to the catch-all one.
			userID, ok = e.subs.FindSubscriber(AllOrders)
		}
		if !ok {
			return
		}
		if err := e.notifier.Notify(userID, body); err != nil {
			log.Printf("mirror: notify subscriber for %q: %v", district, err)
		}
	}()
}
