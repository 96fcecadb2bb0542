// Package aggregator merges a burst of chat fragments from one phone into a
// single composite message once the sender goes quiet.
package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InputType classifies a flushed composite
type InputType string

const (
	InputImageWithCaption InputType = "IMAGE_WITH_CAPTION"
	InputTextWithImage    InputType = "TEXT_WITH_IMAGE"
	InputTextOnly         InputType = "TEXT_ONLY"
)

// Image is a not-yet-downloaded attachment handle
type Image struct {
	Handle   string `json:"handle"`
	MimeType string `json:"mime_type,omitempty"`
}

// Composite is what a buffer turns into when it flushes
type Composite struct {
	Phone     string    `json:"phone"`
	Text      string    `json:"text"`
	Images    []Image   `json:"images"`
	InputType InputType `json:"input_type"`
	CreatedAt time.Time `json:"created_at"`
}

// FlushFunc consumes a composite. It runs at most once per buffer.
type FlushFunc func(ctx context.Context, c Composite) error

// Timer is the cancellable handle returned by a Scheduler
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options tunes a Buffer
type Options struct {
	Debounce  time.Duration
	Timeout   time.Duration
	Scheduler Scheduler
	Now       func() time.Time
	// OnFailure is told about flush errors and panics so the user can be answered
	OnFailure func(phone string, err error)
}

type entry struct {
	text       string
	images     []Image
	captioned  bool
	createdAt  time.Time
	timer      Timer
	generation uint64
}

// Buffer holds at most one pending composite per phone
type Buffer struct {
	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64

	flush  FlushFunc
	opts   Options
	logger *zap.Logger
}

// New creates a Buffer. Zero options fall back to a 3s wall-clock debounce.
func New(flush FlushFunc, opts Options, logger *zap.Logger) *Buffer {
	if opts.Debounce <= 0 {
		opts.Debounce = 3 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Scheduler == nil {
		opts.Scheduler = wallClock{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Buffer{
		entries: make(map[string]*entry),
		flush:   flush,
		opts:    opts,
		logger:  logger,
	}
}

// BufferText starts a buffer or replaces its text. The latest text wins.
func (b *Buffer) BufferText(phone, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.getOrCreate(phone)
	e.text = strings.TrimSpace(text)
	b.rearm(phone, e)
}

// BufferImage joins an existing buffer. It returns false when nothing is buffering for phone.
func (b *Buffer) BufferImage(phone string, img Image) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[phone]
	if !ok {
		return false
	}
	e.images = append(e.images, img)
	b.rearm(phone, e)
	return true
}

// BufferCaptionedImage starts or joins a buffer; the caption is appended to any buffered text
func (b *Buffer) BufferCaptionedImage(phone, caption string, img Image) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.getOrCreate(phone)
	caption = strings.TrimSpace(caption)
	switch {
	case e.text == "":
		e.text = caption
	case caption != "":
		e.text = e.text + "\n" + caption
	}
	e.images = append(e.images, img)
	e.captioned = true
	b.rearm(phone, e)
}

// Has reports whether phone has a pending buffer
func (b *Buffer) Has(phone string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[phone]
	return ok
}

// Peek returns the composite a flush would produce right now
func (b *Buffer) Peek(phone string) (Composite, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[phone]
	if !ok {
		return Composite{}, false
	}
	return e.composite(phone), true
}

// Cancel discards the buffer without flushing
func (b *Buffer) Cancel(phone string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remove(phone) != nil
}

// Flush hands the buffer to the flush function immediately, in the caller's goroutine
func (b *Buffer) Flush(ctx context.Context, phone string) bool {
	b.mu.Lock()
	e := b.remove(phone)
	b.mu.Unlock()

	if e == nil {
		return false
	}
	b.run(ctx, e.composite(phone))
	return true
}

// Len is the number of phones currently buffering
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffer) getOrCreate(phone string) *entry {
	e, ok := b.entries[phone]
	if !ok {
		e = &entry{createdAt: b.opts.Now()}
		b.entries[phone] = e
	}
	return e
}

// rearm replaces the debounce timer. Callers hold b.mu.
func (b *Buffer) rearm(phone string, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	b.gen++
	generation := b.gen
	e.generation = generation
	e.timer = b.opts.Scheduler.AfterFunc(b.opts.Debounce, func() {
		b.expire(phone, generation)
	})
}

// remove detaches the entry and stops its timer. Callers hold b.mu.
func (b *Buffer) remove(phone string) *entry {
	e, ok := b.entries[phone]
	if !ok {
		return nil
	}
	delete(b.entries, phone)
	if e.timer != nil {
		e.timer.Stop()
	}
	return e
}

func (b *Buffer) expire(phone string, generation uint64) {
	b.mu.Lock()
	e, ok := b.entries[phone]
	if !ok || e.generation != generation {
		// A newer fragment re-armed the timer, or the buffer was flushed or cancelled
		b.mu.Unlock()
		return
	}
	delete(b.entries, phone)
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), b.opts.Timeout)
	defer cancel()
	b.run(ctx, e.composite(phone))
}

func (b *Buffer) run(ctx context.Context, c Composite) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("flush panic: %v", r)
			b.logger.Error("Recovered panic in buffer flush",
				zap.String("phone", c.Phone),
				zap.Any("panic", r),
			)
			b.fail(c.Phone, err)
		}
	}()

	b.logger.Debug("Flushing buffer",
		zap.String("phone", c.Phone),
		zap.String("input_type", string(c.InputType)),
		zap.Int("images", len(c.Images)),
	)

	if err := b.flush(ctx, c); err != nil {
		b.logger.Error("Buffer flush failed",
			zap.String("phone", c.Phone),
			zap.Error(err),
		)
		b.fail(c.Phone, err)
	}
}

func (b *Buffer) fail(phone string, err error) {
	if b.opts.OnFailure != nil {
		b.opts.OnFailure(phone, err)
	}
}

func (e *entry) composite(phone string) Composite {
	c := Composite{
		Phone:     phone,
		Text:      e.text,
		Images:    append([]Image{}, e.images...),
		CreatedAt: e.createdAt,
	}
	switch {
	case e.captioned:
		c.InputType = InputImageWithCaption
	case len(e.images) > 0:
		c.InputType = InputTextWithImage
	default:
		c.InputType = InputTextOnly
	}
	return c
}
