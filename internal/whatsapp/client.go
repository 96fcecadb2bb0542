package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrDeliveryFailed wraps every non-2xx answer from the messages endpoint
var ErrDeliveryFailed = errors.New("whatsapp delivery failed")

// Interactive message limits enforced by the Cloud API
const (
	MaxButtons           = 3
	MaxButtonTitle       = 20
	MaxListRows          = 10
	MaxListRowTitle      = 24
	MaxListRowDesc       = 72
	MaxListButtonLabel   = 20
	MaxInteractiveBody   = 1024
	MaxTextBody          = 4096
	maxErrorBodyBytes    = 4 << 10
	defaultClientTimeout = 15 * time.Second
)

// Button is a quick-reply button
type Button struct {
	ID    string
	Title string
}

// ListRow is a selectable row in a list message
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups rows under an optional title
type ListSection struct {
	Title string
	Rows  []ListRow
}

// ClientConfig holds Cloud API credentials
type ClientConfig struct {
	APIBase       string
	Token         string
	PhoneNumberID string
	Timeout       time.Duration
}

// Client sends messages and fetches media through the Cloud API
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Cloud API client. A nil httpClient gets a default with cfg.Timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultClientTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.APIBase = strings.TrimSuffix(cfg.APIBase, "/")
	return &Client{cfg: cfg, httpClient: httpClient, logger: logger}
}

type outboundMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type interactive struct {
	Type   string            `json:"type"`
	Header *interactiveText  `json:"header,omitempty"`
	Body   interactiveText   `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveText struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

type interactiveAction struct {
	Button   string          `json:"button,omitempty"`
	Buttons  []replyButton   `json:"buttons,omitempty"`
	Sections []actionSection `json:"sections,omitempty"`
}

type replyButton struct {
	Type  string     `json:"type"`
	Reply replyTitle `json:"reply"`
}

type replyTitle struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type actionSection struct {
	Title string      `json:"title,omitempty"`
	Rows  []actionRow `json:"rows"`
}

type actionRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// SendText sends a plain text message
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: Truncate(body, MaxTextBody)},
	})
}

// SendButtons sends up to three reply buttons under body. Extra buttons are dropped.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	if len(buttons) == 0 {
		return c.SendText(ctx, to, body)
	}
	if len(buttons) > MaxButtons {
		buttons = buttons[:MaxButtons]
	}

	replies := make([]replyButton, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, replyButton{
			Type:  "reply",
			Reply: replyTitle{ID: b.ID, Title: Truncate(b.Title, MaxButtonTitle)},
		})
	}

	return c.send(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &interactive{
			Type:   "button",
			Body:   interactiveText{Text: Truncate(body, MaxInteractiveBody)},
			Action: interactiveAction{Buttons: replies},
		},
	})
}

// SendList sends a selectable list. Each section keeps at most ten rows.
func (c *Client) SendList(ctx context.Context, to, header, body, buttonLabel string, sections []ListSection) error {
	out := make([]actionSection, 0, len(sections))
	for _, s := range sections {
		rows := s.Rows
		if len(rows) > MaxListRows {
			rows = rows[:MaxListRows]
		}
		if len(rows) == 0 {
			continue
		}
		converted := make([]actionRow, 0, len(rows))
		for _, r := range rows {
			converted = append(converted, actionRow{
				ID:          r.ID,
				Title:       Truncate(r.Title, MaxListRowTitle),
				Description: Truncate(r.Description, MaxListRowDesc),
			})
		}
		out = append(out, actionSection{Title: Truncate(s.Title, MaxListRowTitle), Rows: converted})
	}
	if len(out) == 0 {
		return c.SendText(ctx, to, body)
	}

	msg := &interactive{
		Type:   "list",
		Body:   interactiveText{Text: Truncate(body, MaxInteractiveBody)},
		Action: interactiveAction{Button: Truncate(buttonLabel, MaxListButtonLabel), Sections: out},
	}
	if header != "" {
		msg.Header = &interactiveText{Type: "text", Text: Truncate(header, 60)}
	}

	return c.send(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive:      msg,
	})
}

func (c *Client) send(ctx context.Context, msg outboundMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.APIBase, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Debug("Message delivered",
		zap.String("to", msg.To),
		zap.String("type", msg.Type),
	)
	return nil
}

// Truncate shortens s to at most limit runes, marking the cut with an ellipsis
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	if limit == 1 {
		return string(runes[:1])
	}
	return string(runes[:limit-1]) + "…"
}
