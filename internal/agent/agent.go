// Package agent is the WhatsApp inventory assistant: a button-driven state
// machine that lets sellers onboard and manage products over chat.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shuttle-market/internal/aggregator"
	"shuttle-market/internal/domain"
	"shuttle-market/internal/media"
	"shuttle-market/internal/repository"
	"shuttle-market/internal/service"
	"shuttle-market/internal/session"
	"shuttle-market/internal/whatsapp"

	"go.uber.org/zap"
)

// seenTTL bounds how long delivered message ids are remembered for de-duplication
const seenTTL = time.Hour

// MediaGateway moves media from the provider to the media host
type MediaGateway interface {
	Download(ctx context.Context, handle string, maxBytes int64) (media.Download, error)
	Upload(ctx context.Context, data []byte, opts media.UploadOptions) (media.UploadResult, error)
	Delete(ctx context.Context, externalID string, resourceType domain.MediaType) error
}

// Config tunes timeouts and media ceilings
type Config struct {
	StateTimeout    time.Duration
	MediaTargetTTL  time.Duration
	Debounce        time.Duration
	ProcessTimeout  time.Duration
	ImageMaxBytes   int64
	VideoMaxBytes   int64
	VideoMaxSeconds int
}

// DefaultConfig mirrors the production defaults
func DefaultConfig() Config {
	return Config{
		StateTimeout:    10 * time.Minute,
		MediaTargetTTL:  5 * time.Minute,
		Debounce:        3 * time.Second,
		ProcessTimeout:  60 * time.Second,
		ImageMaxBytes:   2 << 20,
		VideoMaxBytes:   64 << 20,
		VideoMaxSeconds: 20,
	}
}

// Deps are the collaborators the agent drives
type Deps struct {
	Catalog    service.CatalogService
	Media      MediaGateway
	States     session.Store[State]
	Targets    session.Store[MediaTarget]
	Seen       session.Store[bool]
	Dispatcher *Dispatcher
}

// Options are test seams; zero values use the wall clock
type Options struct {
	Scheduler aggregator.Scheduler
	Now       func() time.Time
}

type inputKind int

const (
	inputText inputKind = iota
	inputImage
	inputVideo
	inputButton
)

type input struct {
	kind    inputKind
	text    string
	media   *whatsapp.Media
	caption string
	intent  Intent
	known   bool
}

// turn is everything a step handler needs for one inbound event
type turn struct {
	phone  string
	seller *domain.Seller
	state  State
	in     input
}

type stepHandler func(ctx context.Context, t *turn) ([]Reply, error)

// Agent routes inbound events through onboarding, the aggregator and the step handlers
type Agent struct {
	catalog    service.CatalogService
	media      MediaGateway
	states     session.Store[State]
	targets    session.Store[MediaTarget]
	seen       session.Store[bool]
	dispatcher *Dispatcher
	buffer     *aggregator.Buffer
	handlers   map[Step]stepHandler

	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func New(deps Deps, cfg Config, opts Options, logger *zap.Logger) *Agent {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := &Agent{
		catalog:    deps.Catalog,
		media:      deps.Media,
		states:     deps.States,
		targets:    deps.Targets,
		seen:       deps.Seen,
		dispatcher: deps.Dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        opts.Now,
	}

	a.buffer = aggregator.New(a.HandleComposite, aggregator.Options{
		Debounce:  cfg.Debounce,
		Timeout:   cfg.ProcessTimeout,
		Scheduler: opts.Scheduler,
		Now:       opts.Now,
		OnFailure: a.onFlushFailure,
	}, logger.With(zap.String("component", "aggregator")))

	a.handlers = map[Step]stepHandler{
		StepIdle:                     a.onIdle,
		StepAwaitingImage:            a.onAwaitingImage,
		StepAwaitingProductDetails:   a.onAwaitingProductDetails,
		StepAwaitingProductSelection: a.onAwaitingProductSelection,
		StepAwaitingUpdateField:      a.onAwaitingUpdateField,
		StepAwaitingUpdateValue:      a.onAwaitingUpdateValue,
		StepConfirmDelete:            a.onConfirmDelete,
	}

	return a
}

// HandleEvent processes one normalized event and sends the replies. It never panics.
func (a *Agent) HandleEvent(ctx context.Context, ev whatsapp.Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Recovered panic while handling event",
				zap.String("phone", ev.Phone),
				zap.Any("panic", r),
			)
			a.dispatcher.Dispatch(ctx, ev.Phone, []Reply{textReply(msgApology)})
		}
	}()

	if a.duplicate(ctx, ev) {
		return
	}

	replies, err := a.handle(ctx, ev)
	if err != nil {
		a.logger.Error("Failed to handle event",
			zap.String("phone", ev.Phone),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		replies = []Reply{textReply(msgApology)}
	}

	a.dispatcher.Dispatch(ctx, ev.Phone, replies)
}

func (a *Agent) handle(ctx context.Context, ev whatsapp.Event) ([]Reply, error) {
	seller, err := a.catalog.FindSellerByPhone(ctx, ev.Phone)
	if errors.Is(err, repository.ErrSellerNotFound) {
		return a.startOnboarding(ctx, ev.Phone)
	}
	if err != nil {
		return nil, err
	}
	if seller.Status == domain.SellerDeactivated {
		return []Reply{textReply(msgDeactivated)}, nil
	}

	state, err := a.loadState(ctx, ev.Phone)
	if err != nil {
		return nil, err
	}

	t := &turn{phone: ev.Phone, seller: seller, state: state, in: toInput(ev)}

	if t.isCancel() {
		if err := a.cancelAll(ctx, t.phone, t.state); err != nil {
			return nil, err
		}
		if !seller.OnboardingComplete() {
			t.state = IdleState()
			replies, err := a.handleOnboarding(ctx, t)
			return append([]Reply{textReply(msgCancelled)}, replies...), err
		}
		return []Reply{textReply(msgCancelled), mainMenu("")}, nil
	}

	if !seller.OnboardingComplete() {
		return a.handleOnboarding(ctx, t)
	}

	if t.isDone() {
		if a.buffer.Flush(ctx, t.phone) {
			// The flush sends its own replies
			return nil, nil
		}
		if t.in.kind == inputButton {
			return []Reply{mainMenu(msgNothingPending)}, nil
		}
	}

	switch t.in.kind {
	case inputButton:
		if a.buffer.Cancel(t.phone) {
			a.logger.Debug("Discarded buffered message for button press", zap.String("phone", t.phone))
		}
		return a.routeButton(ctx, t)
	case inputText:
		if t.state.Step == StepIdle && !IsGreeting(t.in.text) && (a.buffer.Has(t.phone) || LooksLikeProductDescription(t.in.text)) {
			a.buffer.BufferText(t.phone, t.in.text)
			return nil, nil
		}
	case inputImage:
		if caption := t.in.caption; caption != "" {
			// A captioned image always starts a new product
			if err := a.targets.Delete(ctx, t.phone); err != nil {
				return nil, fmt.Errorf("failed to clear media target: %w", err)
			}
			if t.state.Step != StepIdle {
				if err := a.clearState(ctx, t.phone, t.state); err != nil {
					return nil, err
				}
			}
			a.buffer.BufferCaptionedImage(t.phone, caption, aggregator.Image{Handle: t.in.media.ID, MimeType: t.in.media.MimeType})
			return nil, nil
		}
		if t.state.Step == StepIdle && a.buffer.BufferImage(t.phone, aggregator.Image{Handle: t.in.media.ID, MimeType: t.in.media.MimeType}) {
			return nil, nil
		}
		if !t.expectsMedia() {
			return a.handleMediaTarget(ctx, t)
		}
	case inputVideo:
		if !t.expectsMedia() {
			return a.handleMediaTarget(ctx, t)
		}
	}

	return a.dispatchStep(ctx, t)
}

func (a *Agent) routeButton(ctx context.Context, t *turn) ([]Reply, error) {
	if !t.in.known {
		return []Reply{textReply(msgUseButtons), mainMenu("")}, nil
	}

	intent := t.in.intent
	if intent.isMenuIntent() && t.state.Step != StepIdle {
		// Menu buttons restart the conversation from Idle
		if err := a.clearState(ctx, t.phone, t.state); err != nil {
			return nil, err
		}
		t.state = IdleState()
	}
	if intent.Kind == IntentMainMenu {
		return []Reply{mainMenu("")}, nil
	}
	if intent.isMediaIntent() {
		return a.handleMediaIntent(ctx, t)
	}

	return a.dispatchStep(ctx, t)
}

func (a *Agent) dispatchStep(ctx context.Context, t *turn) ([]Reply, error) {
	handler, ok := a.handlers[t.state.Step]
	if !ok {
		// Onboarding steps left behind by an already onboarded seller
		if err := a.dropState(ctx, t.phone); err != nil {
			return nil, err
		}
		t.state = IdleState()
		handler = a.onIdle
	}
	return handler(ctx, t)
}

// HandleComposite is the aggregator flush target
func (a *Agent) HandleComposite(ctx context.Context, c aggregator.Composite) error {
	seller, err := a.catalog.FindSellerByPhone(ctx, c.Phone)
	if errors.Is(err, repository.ErrSellerNotFound) {
		a.logger.Warn("Dropping buffered message for unknown seller", zap.String("phone", c.Phone))
		return nil
	}
	if err != nil {
		return err
	}
	if !seller.OnboardingComplete() || seller.Status == domain.SellerDeactivated {
		return nil
	}

	replies, err := a.createFromComposite(ctx, seller, c)
	if err != nil {
		return err
	}
	a.dispatcher.Dispatch(ctx, c.Phone, replies)
	return nil
}

func (a *Agent) onFlushFailure(phone string, _ error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.dispatcher.Dispatch(ctx, phone, []Reply{textReply(msgApology)})
}

// duplicate remembers message ids so provider retries are processed once
func (a *Agent) duplicate(ctx context.Context, ev whatsapp.Event) bool {
	if a.seen == nil || ev.MessageID == "" {
		return false
	}
	if _, err := a.seen.Get(ctx, ev.MessageID); err == nil {
		a.logger.Debug("Skipping duplicate delivery", zap.String("message_id", ev.MessageID))
		return true
	}
	if err := a.seen.Set(ctx, ev.MessageID, true, seenTTL); err != nil {
		a.logger.Warn("Failed to remember message id", zap.Error(err))
	}
	return false
}

func toInput(ev whatsapp.Event) input {
	switch ev.Kind {
	case whatsapp.KindImage:
		return input{kind: inputImage, media: ev.Media, caption: ev.Caption()}
	case whatsapp.KindVideo:
		return input{kind: inputVideo, media: ev.Media, caption: ev.Caption()}
	case whatsapp.KindInteractive:
		in := input{kind: inputButton}
		if ev.Reply != nil {
			in.intent, in.known = ParseButton(ev.Reply.ID)
		}
		return in
	default:
		return input{kind: inputText, text: ev.Text}
	}
}

func (t *turn) isCancel() bool {
	switch t.in.kind {
	case inputText:
		return IsCancel(t.in.text)
	case inputButton:
		return t.in.known && t.in.intent.Kind == IntentCancel
	}
	return false
}

// isDone reports the explicit completion signal that flushes a pending buffer
func (t *turn) isDone() bool {
	switch t.in.kind {
	case inputText:
		return IsDone(t.in.text)
	case inputButton:
		return t.in.known && t.in.intent.Kind == IntentDone
	}
	return false
}

// expectsMedia reports steps that consume bare images and videos themselves
func (t *turn) expectsMedia() bool {
	return t.state.Step == StepAwaitingImage || t.state.Step == StepAwaitingProductDetails
}
