package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"shuttle-market/internal/aggregator"
	"shuttle-market/internal/domain"
	"shuttle-market/internal/media"
	"shuttle-market/internal/repository"
	"shuttle-market/internal/service"
	"shuttle-market/internal/session"
	"shuttle-market/internal/whatsapp"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeTimer struct {
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler never fires on its own; tests call fire
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) aggregator.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) fire() {
	s.mu.Lock()
	timers := append([]*fakeTimer{}, s.timers...)
	s.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

type sentMessage struct {
	kind    ReplyKind
	body    string
	buttons []string
}

func (m sentMessage) hasButton(id string) bool {
	for _, b := range m.buttons {
		if b == id {
			return true
		}
	}
	return false
}

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][]sentMessage
	fail bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[string][]sentMessage)}
}

func (s *recordingSender) record(to string, m sentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return whatsapp.ErrDeliveryFailed
	}
	s.sent[to] = append(s.sent[to], m)
	return nil
}

func (s *recordingSender) SendText(ctx context.Context, to, body string) error {
	return s.record(to, sentMessage{kind: ReplyText, body: body})
}

func (s *recordingSender) SendButtons(ctx context.Context, to, body string, buttons []whatsapp.Button) error {
	ids := make([]string, 0, len(buttons))
	for _, b := range buttons {
		ids = append(ids, b.ID)
	}
	return s.record(to, sentMessage{kind: ReplyButtons, body: body, buttons: ids})
}

func (s *recordingSender) SendList(ctx context.Context, to, header, body, buttonLabel string, sections []whatsapp.ListSection) error {
	ids := []string{}
	for _, sec := range sections {
		for _, r := range sec.Rows {
			ids = append(ids, r.ID)
		}
	}
	return s.record(to, sentMessage{kind: ReplyList, body: body, buttons: ids})
}

// fakeGateway treats the media handle as the file contents. Handles starting with
// "huge" are too large, "long" videos exceed the duration and "doc" is not media.
type fakeGateway struct {
	mu       sync.Mutex
	next     int
	uploaded []string
	deleted  []string
}

func (g *fakeGateway) Download(ctx context.Context, handle string, maxBytes int64) (media.Download, error) {
	if strings.HasPrefix(handle, "huge") {
		return media.Download{}, fmt.Errorf("%w: %s", media.ErrAssetTooLarge, handle)
	}
	if strings.HasPrefix(handle, "broken") {
		return media.Download{}, errors.New("provider unavailable")
	}
	return media.Download{Data: []byte(handle), SizeBytes: int64(len(handle))}, nil
}

func (g *fakeGateway) Upload(ctx context.Context, data []byte, opts media.UploadOptions) (media.UploadResult, error) {
	content := string(data)
	switch {
	case strings.HasPrefix(content, "doc"):
		return media.UploadResult{}, media.ErrUnsupportedType
	case strings.HasPrefix(content, "long"):
		return media.UploadResult{}, media.ErrVideoTooLong
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	key := fmt.Sprintf("%s/asset-%d", opts.Folder, g.next)
	g.uploaded = append(g.uploaded, key)
	res := media.UploadResult{URL: "https://cdn.test/" + key, ExternalID: key}
	if opts.ResourceType == domain.MediaVideo {
		res.DurationSeconds = 12
	}
	return res, nil
}

func (g *fakeGateway) Delete(ctx context.Context, externalID string, resourceType domain.MediaType) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, externalID)
	return nil
}

func (g *fakeGateway) wasDeleted(externalID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range g.deleted {
		if id == externalID {
			return true
		}
	}
	return false
}

// fakeCatalog is an in-memory CatalogService with the same ownership and cap rules
type fakeCatalog struct {
	mu       sync.Mutex
	sellers  map[string]*domain.Seller
	products map[uuid.UUID]*domain.Product
	media    service.MediaReleaser
	clock    *fakeClock
}

func cloneProduct(p *domain.Product) *domain.Product {
	copied := *p
	copied.Images = append([]domain.MediaRef{}, p.Images...)
	if p.Video != nil {
		v := *p.Video
		copied.Video = &v
	}
	return &copied
}

func (c *fakeCatalog) FindSellerByPhone(ctx context.Context, phone string) (*domain.Seller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sellers[phone]
	if !ok {
		return nil, repository.ErrSellerNotFound
	}
	copied := *s
	return &copied, nil
}

func (c *fakeCatalog) CreateSeller(ctx context.Context, phone string) (*domain.Seller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sellers[phone]; ok {
		copied := *s
		return &copied, nil
	}
	s := domain.NewPlaceholderSeller(phone, "hash", c.clock.Now())
	c.sellers[phone] = s
	copied := *s
	return &copied, nil
}

func (c *fakeCatalog) SaveSeller(ctx context.Context, seller *domain.Seller) error {
	if err := seller.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	seller.SyncActive()
	copied := *seller
	c.sellers[seller.Phone] = &copied
	return nil
}

func (c *fakeCatalog) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = cloneProduct(product)
	return nil
}

func (c *fakeCatalog) FindProductsBySeller(ctx context.Context, sellerID uuid.UUID, filter repository.ProductFilter, limit int) ([]*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range c.products {
		if p.SellerID == sellerID {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *fakeCatalog) FindProductByFuzzyName(ctx context.Context, sellerID uuid.UUID, pattern string) ([]*domain.Product, error) {
	all, _ := c.FindProductsBySeller(ctx, sellerID, repository.ProductFilter{}, 0)
	out := []*domain.Product{}
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(strings.TrimSpace(pattern))) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *fakeCatalog) FindProductByID(ctx context.Context, sellerID, productID uuid.UUID) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok || p.SellerID != sellerID {
		return nil, repository.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (c *fakeCatalog) UpdateProduct(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	c.products[product.ID] = cloneProduct(product)
	return nil
}

func (c *fakeCatalog) DeleteProduct(ctx context.Context, sellerID, productID uuid.UUID) error {
	product, err := c.FindProductByID(ctx, sellerID, productID)
	if err != nil {
		return err
	}
	c.release(ctx, product.ExternalMedia())
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, productID)
	return nil
}

func (c *fakeCatalog) AddProductImage(ctx context.Context, sellerID, productID uuid.UUID, ref domain.MediaRef) (*domain.Product, error) {
	product, err := c.FindProductByID(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}
	if product.ImageSlotsLeft() == 0 {
		return product, service.ErrImageLimitReached
	}
	product.Images = append(product.Images, ref)
	return product, c.UpdateProduct(ctx, product)
}

func (c *fakeCatalog) SetProductVideo(ctx context.Context, sellerID, productID uuid.UUID, video domain.Video) (*domain.Product, error) {
	product, err := c.FindProductByID(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}
	if product.Video != nil {
		c.release(ctx, []domain.MediaRef{{ExternalID: product.Video.ExternalID, Type: domain.MediaVideo}})
	}
	product.Video = &video
	return product, c.UpdateProduct(ctx, product)
}

func (c *fakeCatalog) ClearProductMedia(ctx context.Context, sellerID, productID uuid.UUID) (*domain.Product, error) {
	product, err := c.FindProductByID(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}
	c.release(ctx, product.ExternalMedia())
	product.Images = []domain.MediaRef{}
	product.Video = nil
	return product, c.UpdateProduct(ctx, product)
}

func (c *fakeCatalog) release(ctx context.Context, refs []domain.MediaRef) {
	for _, ref := range refs {
		_ = c.media.Delete(ctx, ref.ExternalID, ref.Type)
	}
}

func (c *fakeCatalog) productsOf(phone string) []*domain.Product {
	seller, err := c.FindSellerByPhone(context.Background(), phone)
	if err != nil {
		return nil
	}
	products, _ := c.FindProductsBySeller(context.Background(), seller.ID, repository.ProductFilter{}, 0)
	return products
}

type harness struct {
	t       *testing.T
	agent   *Agent
	catalog *fakeCatalog
	gateway *fakeGateway
	sender  *recordingSender
	sched   *fakeScheduler
	clock   *fakeClock
	states  *session.MemoryStore[State]
	targets *session.MemoryStore[MediaTarget]
	msgSeq  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	gateway := &fakeGateway{}
	catalog := &fakeCatalog{
		sellers:  make(map[string]*domain.Seller),
		products: make(map[uuid.UUID]*domain.Product),
		media:    gateway,
		clock:    clock,
	}
	sender := newRecordingSender()
	sched := &fakeScheduler{}
	states := session.NewMemoryStore[State](clock.Now)
	targets := session.NewMemoryStore[MediaTarget](clock.Now)

	a := New(Deps{
		Catalog:    catalog,
		Media:      gateway,
		States:     states,
		Targets:    targets,
		Seen:       session.NewMemoryStore[bool](clock.Now),
		Dispatcher: NewDispatcher(sender, zap.NewNop()),
	}, DefaultConfig(), Options{Scheduler: sched, Now: clock.Now}, zap.NewNop())

	return &harness{
		t:       t,
		agent:   a,
		catalog: catalog,
		gateway: gateway,
		sender:  sender,
		sched:   sched,
		clock:   clock,
		states:  states,
		targets: targets,
	}
}

// seller registers a fully onboarded, active seller
func (h *harness) seller(phone string) *domain.Seller {
	h.t.Helper()
	s := domain.NewPlaceholderSeller(phone, "hash", h.clock.Now())
	s.Name = "Ali"
	s.StoreName = "Smash Store"
	s.OnboardingStep = domain.OnboardingComplete
	s.Status = domain.SellerActive
	if err := h.catalog.SaveSeller(context.Background(), s); err != nil {
		h.t.Fatalf("seed seller: %v", err)
	}
	return s
}

func (h *harness) product(seller *domain.Seller, name string, images int) *domain.Product {
	h.t.Helper()
	p := domain.NewProduct(seller.ID, name, 5000, h.clock.Now())
	for i := 0; i < images; i++ {
		p.Images = append(p.Images, domain.MediaRef{
			URL:        fmt.Sprintf("https://cdn.test/seed-%s-%d", p.ID, i),
			ExternalID: fmt.Sprintf("seed-%s-%d", p.ID, i),
			Type:       domain.MediaImage,
		})
	}
	if err := h.catalog.CreateProduct(context.Background(), p); err != nil {
		h.t.Fatalf("seed product: %v", err)
	}
	return p
}

func (h *harness) deliver(ev whatsapp.Event) {
	h.msgSeq++
	if ev.MessageID == "" {
		ev.MessageID = fmt.Sprintf("wamid.%d", h.msgSeq)
	}
	ev.Timestamp = h.clock.Now()
	h.agent.HandleEvent(context.Background(), ev)
}

func (h *harness) text(phone, body string) {
	h.deliver(whatsapp.Event{Phone: phone, Kind: whatsapp.KindText, Text: body})
}

func (h *harness) image(phone, handle, caption string) {
	h.deliver(whatsapp.Event{Phone: phone, Kind: whatsapp.KindImage, Media: &whatsapp.Media{ID: handle, MimeType: "image/jpeg", Caption: caption}})
}

func (h *harness) video(phone, handle string) {
	h.deliver(whatsapp.Event{Phone: phone, Kind: whatsapp.KindVideo, Media: &whatsapp.Media{ID: handle, MimeType: "video/mp4"}})
}

func (h *harness) button(phone, id string) {
	h.deliver(whatsapp.Event{Phone: phone, Kind: whatsapp.KindInteractive, Reply: &whatsapp.Reply{ID: id}})
}

func (h *harness) sent(phone string) []sentMessage {
	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	return append([]sentMessage{}, h.sender.sent[phone]...)
}

func (h *harness) last(phone string) sentMessage {
	h.t.Helper()
	msgs := h.sent(phone)
	if len(msgs) == 0 {
		h.t.Fatalf("no messages sent to %s", phone)
	}
	return msgs[len(msgs)-1]
}

// sentSince returns the messages delivered after the first n
func (h *harness) sentSince(phone string, n int) []sentMessage {
	msgs := h.sent(phone)
	if n > len(msgs) {
		return nil
	}
	return msgs[n:]
}

func (h *harness) step(phone string) Step {
	st, err := h.states.Get(context.Background(), phone)
	if errors.Is(err, session.ErrNotFound) {
		return StepIdle
	}
	if err != nil {
		h.t.Fatalf("load state: %v", err)
	}
	return st.Step
}

func (h *harness) target(phone string) (MediaTarget, bool) {
	target, err := h.targets.Get(context.Background(), phone)
	return target, err == nil
}

func anyContains(msgs []sentMessage, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m.body, substr) {
			return true
		}
	}
	return false
}
