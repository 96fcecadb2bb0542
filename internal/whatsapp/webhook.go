// Package whatsapp talks to the WhatsApp Cloud API: it normalizes inbound
// webhook deliveries and sends outbound messages.
package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedPayload is returned when a webhook body is not valid JSON
var ErrMalformedPayload = errors.New("malformed webhook payload")

// EventKind is the uniform message type handed to the agent
type EventKind string

const (
	KindText        EventKind = "text"
	KindImage       EventKind = "image"
	KindVideo       EventKind = "video"
	KindInteractive EventKind = "interactive"
)

// Media is an attachment reference as delivered by the provider
type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Reply is the identifier and title of a tapped button or list row
type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Event is one inbound message in provider-independent form
type Event struct {
	Phone       string    `json:"phone"`
	Kind        EventKind `json:"kind"`
	MessageID   string    `json:"message_id,omitempty"`
	ContactName string    `json:"contact_name,omitempty"`
	Text        string    `json:"text,omitempty"`
	Media       *Media    `json:"media,omitempty"`
	Reply       *Reply    `json:"reply,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Caption returns the trimmed caption of an image or video event
func (e Event) Caption() string {
	if e.Media == nil {
		return ""
	}
	return strings.TrimSpace(e.Media.Caption)
}

// Webhook payload shapes. Every level is optional in practice, so nothing is
// dereferenced without a nil/length check.
type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string        `json:"field"`
	Value *webhookValue `json:"value"`
}

type webhookValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []webhookContact  `json:"contacts"`
	Messages         []webhookMessage  `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
}

type webhookContact struct {
	WaID    string `json:"wa_id"`
	Profile *struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type webhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image       *Media `json:"image"`
	Video       *Media `json:"video"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *Reply `json:"button_reply"`
		ListReply   *Reply `json:"list_reply"`
	} `json:"interactive"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
}

// Normalize turns a raw webhook body into zero or more events. Status
// callbacks and unsupported message types produce no events; only invalid
// JSON is an error.
func Normalize(body []byte) ([]Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	events := []Event{}
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Value == nil || len(change.Value.Messages) == 0 {
				continue
			}
			names := contactNames(change.Value.Contacts)
			for _, msg := range change.Value.Messages {
				if ev, ok := normalizeMessage(msg); ok {
					ev.ContactName = names[ev.Phone]
					events = append(events, ev)
				}
			}
		}
	}
	return events, nil
}

func contactNames(contacts []webhookContact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.Profile != nil {
			names[c.WaID] = c.Profile.Name
		}
	}
	return names
}

func normalizeMessage(msg webhookMessage) (Event, bool) {
	phone := strings.TrimSpace(msg.From)
	if phone == "" {
		return Event{}, false
	}

	ev := Event{
		Phone:     phone,
		MessageID: msg.ID,
		Timestamp: parseUnix(msg.Timestamp),
	}

	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return Event{}, false
		}
		ev.Kind = KindText
		ev.Text = strings.TrimSpace(msg.Text.Body)
	case "image":
		if msg.Image == nil || msg.Image.ID == "" {
			return Event{}, false
		}
		ev.Kind = KindImage
		ev.Media = msg.Image
	case "video":
		if msg.Video == nil || msg.Video.ID == "" {
			return Event{}, false
		}
		ev.Kind = KindVideo
		ev.Media = msg.Video
	case "interactive":
		if msg.Interactive == nil {
			return Event{}, false
		}
		reply := msg.Interactive.ButtonReply
		if reply == nil {
			reply = msg.Interactive.ListReply
		}
		if reply == nil || reply.ID == "" {
			return Event{}, false
		}
		ev.Kind = KindInteractive
		ev.Reply = reply
	case "button":
		// Quick-reply buttons on template messages carry their id in payload
		if msg.Button == nil || msg.Button.Payload == "" {
			return Event{}, false
		}
		ev.Kind = KindInteractive
		ev.Reply = &Reply{ID: msg.Button.Payload, Title: msg.Button.Text}
	default:
		return Event{}, false
	}

	return ev, true
}

func parseUnix(v string) time.Time {
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
