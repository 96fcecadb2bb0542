package agent

import (
	"context"

	"shuttle-market/internal/whatsapp"

	"go.uber.org/zap"
)

// ReplyKind selects the outbound message shape
type ReplyKind string

const (
	ReplyText    ReplyKind = "text"
	ReplyButtons ReplyKind = "buttons"
	ReplyList    ReplyKind = "list"
)

// Reply is one outbound message decided by the router
type Reply struct {
	Kind       ReplyKind
	Header     string
	Body       string
	Buttons    []whatsapp.Button
	ListButton string
	Sections   []whatsapp.ListSection
}

func textReply(body string) Reply {
	return Reply{Kind: ReplyText, Body: body}
}

func buttonsReply(body string, buttons ...whatsapp.Button) Reply {
	return Reply{Kind: ReplyButtons, Body: body, Buttons: buttons}
}

func listReply(header, body, button string, sections ...whatsapp.ListSection) Reply {
	return Reply{Kind: ReplyList, Header: header, Body: body, ListButton: button, Sections: sections}
}

// Sender is the outbound half of the messaging provider
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendButtons(ctx context.Context, to, body string, buttons []whatsapp.Button) error
	SendList(ctx context.Context, to, header, body, buttonLabel string, sections []whatsapp.ListSection) error
}

// Dispatcher delivers replies. Failures are logged and never reach the state machine.
type Dispatcher struct {
	sender Sender
	logger *zap.Logger
}

func NewDispatcher(sender Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, logger: logger}
}

// Dispatch sends replies in order and returns how many were delivered
func (d *Dispatcher) Dispatch(ctx context.Context, phone string, replies []Reply) int {
	delivered := 0
	for _, r := range replies {
		var err error
		switch r.Kind {
		case ReplyButtons:
			err = d.sender.SendButtons(ctx, phone, r.Body, r.Buttons)
		case ReplyList:
			err = d.sender.SendList(ctx, phone, r.Header, r.Body, r.ListButton, r.Sections)
		default:
			err = d.sender.SendText(ctx, phone, r.Body)
		}
		if err != nil {
			d.logger.Warn("Failed to deliver reply",
				zap.String("phone", phone),
				zap.String("kind", string(r.Kind)),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}
