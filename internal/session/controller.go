// Package session holds the editing state machine and the registry of live
// sessions, one per browser.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"pixelmagic/internal/domain"
	"pixelmagic/internal/infra"
	"pixelmagic/internal/intake"
)

const fallbackErrorMessage = "An unexpected error occurred while processing the image."

// Editor produces an edited image from an encoded source image and an
// instruction. The genai client implements it.
type Editor interface {
	Edit(ctx context.Context, encodedImage, mimeType, prompt string) (string, error)
}

// ControllerOptions carries the optional collaborators of a Controller.
type ControllerOptions struct {
	History domain.HistorySink
	Logger  *infra.Logger
	Now     func() time.Time
}

// Controller is the only writer of a Session. Every transition happens under
// its mutex; the editor call runs on its own goroutine so status reads, resets
// and dismissals are never blocked by an in-flight edit.
type Controller struct {
	mu      sync.Mutex
	session domain.Session
	// inflight is the id of the request whose result may still be applied;
	// zero when nothing is pending.
	inflight uint64
	seq      uint64

	editor  Editor
	history domain.HistorySink
	logger  *infra.Logger
	now     func() time.Time
}

// Ticket tracks one submitted edit.
type Ticket struct {
	ID      uint64
	done    chan struct{}
	applied bool
}

// Done is closed once the edit resolves, whether or not its result was applied.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the edit resolves or ctx ends.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Applied reports whether the result reached the session. Only meaningful
// after Done is closed.
func (t *Ticket) Applied() bool {
	select {
	case <-t.done:
		return t.applied
	default:
		return false
	}
}

// NewController returns a controller in the IDLE state.
func NewController(editor Editor, opts ControllerOptions) *Controller {
	logger := opts.Logger
	if logger == nil {
		nop := infra.NopLogger()
		logger = &nop
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		session: domain.Session{State: domain.StateIdle},
		editor:  editor,
		history: opts.History,
		logger:  logger,
		now:     now,
	}
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State returns the current state.
func (c *Controller) State() domain.AppState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// Load stores a freshly accepted image and moves to READY_TO_EDIT. Any edit
// still in flight is orphaned: its result will be discarded.
func (c *Controller) Load(img intake.Image) error {
	if img.Data == "" {
		return domain.ErrEmptyImage
	}
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = domain.DefaultMimeType
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight = 0
	c.session.OriginalImage = img.Data
	c.session.MimeType = mimeType
	c.session.GeneratedImage = ""
	c.session.Error = ""
	c.session.State = domain.StateReadyToEdit
	return nil
}

// SetPrompt binds the instruction text.
func (c *Controller) SetPrompt(prompt string) {
	prompt = norm.NFC.String(prompt)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Prompt = prompt
}

// Submit starts an edit when an image is loaded, the prompt is non-blank and
// nothing is in flight. Otherwise it does nothing and reports false.
//
// The edit outlives ctx cancellation: a client going away does not abort it.
func (c *Controller) Submit(ctx context.Context) (*Ticket, bool) {
	c.mu.Lock()
	s := c.session
	if !s.HasImage() || !s.HasPrompt() || !s.State.CanSubmit() {
		c.mu.Unlock()
		return nil, false
	}
	c.seq++
	ticket := &Ticket{ID: c.seq, done: make(chan struct{})}
	c.inflight = ticket.ID
	c.session.State = domain.StateProcessing
	c.session.Error = ""
	c.session.GeneratedImage = ""
	c.mu.Unlock()

	c.logger.Debug().
		Uint64("request", ticket.ID).
		Str("mime_type", s.MimeType).
		Int("prompt_length", len(s.Prompt)).
		Msg("session: edit submitted")

	go c.run(context.WithoutCancel(ctx), ticket, s)
	return ticket, true
}

func (c *Controller) run(ctx context.Context, ticket *Ticket, s domain.Session) {
	defer close(ticket.done)
	result, err := c.editor.Edit(ctx, s.OriginalImage, s.MimeType, s.Prompt)
	ticket.applied = c.resolve(ticket.ID, s, result, err)
}

// resolve applies an edit outcome if it still belongs to the current request.
func (c *Controller) resolve(id uint64, submitted domain.Session, result string, err error) bool {
	c.mu.Lock()
	if id != c.inflight || c.session.State != domain.StateProcessing {
		c.mu.Unlock()
		c.logger.Debug().Uint64("request", id).Msg("session: discarded stale edit result")
		return false
	}
	c.inflight = 0
	if err == nil && result == "" {
		err = domain.ErrNoImageData
	}
	if err != nil {
		c.session.State = domain.StateError
		c.session.Error = errorMessage(err)
		c.mu.Unlock()
		c.logger.Info().Uint64("request", id).Err(err).Msg("session: edit failed")
		return true
	}
	c.session.State = domain.StateComplete
	c.session.GeneratedImage = result
	c.mu.Unlock()

	c.logger.Info().Uint64("request", id).Msg("session: edit complete")
	if c.history != nil {
		c.history.Record(domain.NewEditHistoryItem(submitted.OriginalImage, result, submitted.Prompt, c.now()))
	}
	return true
}

// Reset returns to IDLE from any state and clears every field. An edit still
// in flight is orphaned.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight = 0
	c.session = domain.Session{State: domain.StateIdle}
}

// DismissError clears the displayed error; the state is left alone.
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Error = ""
}

func errorMessage(err error) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallbackErrorMessage
}
