// Package controller owns the print session: the device connection, the current
// document, the job for the page in view and the live struck-dot feed for it
package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/embosser-controller/device"
	"github.com/nixxel-company-limited/embosser-controller/document"
	"github.com/nixxel-company-limited/embosser-controller/dots"
	"github.com/nixxel-company-limited/embosser-controller/failure"
	"github.com/nixxel-company-limited/embosser-controller/monitor"
	"github.com/nixxel-company-limited/embosser-controller/notify"
)

// Commander issues print commands to the device through the gateway
type Commander interface {
	PrintDots(ctx context.Context, page dots.Page) error
	PausePrint(ctx context.Context) error
	ResumePrint(ctx context.Context) error
	StopPrint(ctx context.Context) error
}

// Deps wires a Controller
type Deps struct {
	Session   *device.Session
	Store     *document.Store
	Commander Commander
	Monitor   *monitor.Monitor
	Notifier  notify.Notifier
	Logger    zerolog.Logger
}

// State is a consistent read of the whole session
type State struct {
	Session    device.State
	PageCount  int
	Submitting bool
	Job        Job
	// Live holds the struck dots for Job.PageIndex only; it is empty when the
	// feed belongs to another page or no poll has landed yet
	Live dots.Page
}

// Progress compares struck dots against the dots requested for the page in view
type Progress struct {
	Page      int
	Requested int
	Struck    int
}

// Done reports whether every requested dot has been struck
func (p Progress) Done() bool {
	return p.Requested > 0 && p.Struck >= p.Requested
}

// Controller is the single owner of session, document and job state. Its methods
// are safe for concurrent use; a command holds the lock only while checking and
// applying state, never while the request is on the wire
type Controller struct {
	session  *device.Session
	store    *document.Store
	cmd      Commander
	mon      *monitor.Monitor
	notifier notify.Notifier
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	job    Job
	jobGen uint64
	closed bool
}

// New creates a controller. Close releases it
func New(deps Deps) *Controller {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		session:  deps.Session,
		store:    deps.Store,
		cmd:      deps.Commander,
		mon:      deps.Monitor,
		notifier: notifier,
		logger:   deps.Logger.With().Str("component", "controller").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect opens the device session
func (c *Controller) Connect(ctx context.Context, port string, baud int) error {
	if err := c.checkOpen("connect"); err != nil {
		return err
	}
	return c.session.Connect(ctx, port, baud)
}

// Disconnect closes the device session. An active job is not stopped
func (c *Controller) Disconnect(ctx context.Context) error {
	if err := c.checkOpen("disconnect"); err != nil {
		return err
	}
	return c.session.Disconnect(ctx)
}

// Submit transcribes content. On success the new document is swapped in and
// shown from page 0 with a fresh job and live feed in one step, so no reader
// sees the new document paired with the old page; on failure nothing changes
func (c *Controller) Submit(ctx context.Context, content document.Content) (dots.Document, error) {
	if err := c.checkOpen("submit"); err != nil {
		return nil, err
	}
	doc, err := c.store.Transcribe(ctx, content)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		err := failure.WithOp("submit", failure.ErrClosed)
		c.reject(err)
		return nil, err
	}
	c.store.Replace(doc)
	if doc.Empty() {
		c.resetLocked()
	} else {
		c.selectLocked(0)
	}
	c.mu.Unlock()

	c.notifier.Notify(document.Transcribed(doc))
	return doc.Clone(), nil
}

// CloseDocument drops the document, the job and the live feed
func (c *Controller) CloseDocument() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Clear()
	c.resetLocked()
	c.logger.Info().Msg("document closed")
}

// SelectPage moves the view to index, clamped to the document. The previous
// page's feed is cancelled before this returns, and the new page starts with an
// idle job and an empty feed
func (c *Controller) SelectPage(index int) error {
	c.mu.Lock()
	if err := c.viewPreconditionLocked("select page"); err != nil {
		c.mu.Unlock()
		c.reject(err)
		return err
	}
	c.selectLocked(index)
	c.mu.Unlock()
	return nil
}

// NextPage selects the page after the one in view
func (c *Controller) NextPage() error {
	c.mu.Lock()
	next := c.job.PageIndex + 1
	c.mu.Unlock()
	return c.SelectPage(next)
}

// PrevPage selects the page before the one in view
func (c *Controller) PrevPage() error {
	c.mu.Lock()
	prev := c.job.PageIndex - 1
	c.mu.Unlock()
	return c.SelectPage(prev)
}

// Print sends the page in view to the device. Acceptance moves the job to
// Printing; it does not mean the page has been embossed
func (c *Controller) Print(ctx context.Context) error {
	return c.run(ctx, printEdge, func(ctx context.Context, page dots.Page) error {
		return c.cmd.PrintDots(ctx, page)
	})
}

// Pause pauses a printing job. It does nothing unless the job is Printing
func (c *Controller) Pause(ctx context.Context) error {
	return c.run(ctx, pauseEdge, func(ctx context.Context, _ dots.Page) error {
		return c.cmd.PausePrint(ctx)
	})
}

// Resume resumes a paused job. It does nothing unless the job is Paused
func (c *Controller) Resume(ctx context.Context) error {
	return c.run(ctx, resumeEdge, func(ctx context.Context, _ dots.Page) error {
		return c.cmd.ResumePrint(ctx)
	})
}

// Stop ends a printing or paused job. It does nothing from Idle or Stopped
func (c *Controller) Stop(ctx context.Context) error {
	return c.run(ctx, stopEdge, func(ctx context.Context, _ dots.Page) error {
		return c.cmd.StopPrint(ctx)
	})
}

func (c *Controller) run(ctx context.Context, t transition, send func(context.Context, dots.Page) error) error {
	c.mu.Lock()
	if err := c.viewPreconditionLocked(t.op); err != nil {
		c.mu.Unlock()
		c.reject(err)
		return err
	}
	if c.job.RequestInFlight {
		c.mu.Unlock()
		err := failure.WithOp(t.op, failure.ErrBusy)
		c.reject(err)
		return err
	}
	from := c.job.Status
	if !t.allowed(from) {
		c.mu.Unlock()
		c.logger.Debug().Str("op", t.op).Stringer("status", from).Msg("no-op")
		c.notifier.Notify(notify.Info(title(t.op), t.noopReason(from)))
		return nil
	}

	var page dots.Page
	if t.op == printEdge.op {
		p, err := c.store.Page(c.job.PageIndex)
		if err != nil {
			c.mu.Unlock()
			err = failure.NewPrecondition(t.op, err.Error())
			c.reject(err)
			return err
		}
		page = p
	}

	gen := c.jobGen
	job := c.job
	c.job.RequestInFlight = true
	c.mu.Unlock()

	log := c.logger.With().Str("op", t.op).Str("job_id", job.ID).Int("page", job.PageIndex).Logger()
	log.Debug().Stringer("status", from).Msg("dispatching")

	err := send(ctx, page)

	c.mu.Lock()
	if gen != c.jobGen {
		c.mu.Unlock()
		// The view moved on while the request was out; the result belongs to a
		// job that is no longer tracked
		log.Info().Err(err).Msg("result for abandoned job discarded")
		return err
	}
	c.job.RequestInFlight = false
	if err != nil {
		c.mu.Unlock()
		log.Warn().Err(err).Msg("command failed")
		return err
	}
	if t.fresh && from == Stopped {
		c.job.ID = uuid.NewString()
	}
	c.job.Status = t.to
	id := c.job.ID
	c.mu.Unlock()

	log.Info().Str("job_id", id).Stringer("status", t.to).Msg("command accepted")
	if t.op == printEdge.op {
		c.notifier.Notify(notify.Success("Printing", fmt.Sprintf("Page %d is printing...", job.PageIndex+1)))
	}
	return nil
}

// State returns a consistent snapshot
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		Session:    c.session.State(),
		PageCount:  c.store.PageCount(),
		Submitting: c.store.Submitting(),
		Job:        c.job,
		Live:       dots.Page{},
	}
	if st.PageCount > 0 {
		snap := c.mon.Snapshot()
		if snap.Page == c.job.PageIndex {
			st.Live = snap.Dots
		}
	}
	return st
}

// Job returns the job for the page in view
func (c *Controller) Job() Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// Progress reports struck against requested dots for the page in view. Job
// completion is not signalled by the device; callers that need it compare these
func (c *Controller) Progress() Progress {
	st := c.State()
	p := Progress{Page: st.Job.PageIndex, Struck: st.Live.PunchCount()}
	if page, err := c.store.Page(st.Job.PageIndex); err == nil {
		p.Requested = page.PunchCount()
	}
	return p
}

// Close stops the live feed and aborts its poll in flight. Commands already on
// the wire run to completion on their callers' contexts. The device session is
// left as is
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mon.Stop()
	c.cancel()
	c.mu.Unlock()

	c.mon.Wait()
	c.logger.Info().Msg("controller closed")
}

// selectLocked replaces the job with a fresh idle one for index and restarts the
// live feed. The monitor bumps its generation inside Start, so a poll issued
// for the previous page can no longer land
func (c *Controller) selectLocked(index int) {
	index = dots.ClampIndex(index, c.store.PageCount())
	c.jobGen++
	c.job = Job{ID: uuid.NewString(), PageIndex: index, Status: Idle}
	c.mon.Start(c.ctx, index)
	c.logger.Debug().Int("page", index).Str("job_id", c.job.ID).Msg("page selected")
}

func (c *Controller) resetLocked() {
	c.jobGen++
	c.job = Job{}
	c.mon.Reset()
}

func (c *Controller) viewPreconditionLocked(op string) error {
	switch {
	case c.closed:
		return failure.WithOp(op, failure.ErrClosed)
	case !c.session.IsConnected():
		return failure.WithOp(op, failure.ErrNotConnected)
	case c.store.PageCount() == 0:
		return failure.WithOp(op, failure.ErrNoDocument)
	}
	return nil
}

func (c *Controller) checkOpen(op string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		err := failure.WithOp(op, failure.ErrClosed)
		c.reject(err)
		return err
	}
	return nil
}

// reject reports a local rejection. It is called without c.mu held so a
// notifier may read controller state
func (c *Controller) reject(err error) {
	c.logger.Debug().Err(err).Msg("rejected")
	fe, _ := failure.As(err)
	op := ""
	if fe != nil {
		op = fe.Op
	}
	c.notifier.Notify(notify.Warning(title(op), failure.Message(err)))
}

func title(op string) string {
	switch op {
	case "print":
		return "Print"
	case "pause":
		return "Pause"
	case "resume":
		return "Resume"
	case "stop":
		return "Stop"
	case "select page":
		return "Page"
	case "":
		return "Error"
	}
	return op
}
