package agent

import (
	"context"
	"errors"
	"fmt"

	"shuttle-market/internal/aggregator"
	"shuttle-market/internal/domain"
	"shuttle-market/internal/session"

	"go.uber.org/zap"
)

// loadState returns Idle for missing or expired records
func (a *Agent) loadState(ctx context.Context, phone string) (State, error) {
	st, err := a.states.Get(ctx, phone)
	if errors.Is(err, session.ErrNotFound) {
		return IdleState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to load state: %w", err)
	}
	if st.Expired(a.now(), a.cfg.StateTimeout) {
		a.logger.Debug("Conversation state expired",
			zap.String("phone", phone),
			zap.String("step", string(st.Step)),
		)
		if err := a.clearState(ctx, phone, st); err != nil {
			return State{}, err
		}
		return IdleState(), nil
	}
	return st, nil
}

// saveState stamps and stores st. Records outlive the timeout so expiry is observed lazily.
func (a *Agent) saveState(ctx context.Context, phone string, st State) error {
	now := a.now()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	if err := a.states.Set(ctx, phone, st, 2*a.cfg.StateTimeout); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// dropState forgets the state without touching media it references
func (a *Agent) dropState(ctx context.Context, phone string) error {
	if err := a.states.Delete(ctx, phone); err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	return nil
}

// clearState forgets the state and releases uploads not yet attached to a product
func (a *Agent) clearState(ctx context.Context, phone string, st State) error {
	if st.Step == StepAwaitingProductDetails {
		a.releaseImages(ctx, st.Data.Images)
	}
	return a.dropState(ctx, phone)
}

// cancelAll clears state, media target and aggregator buffer
func (a *Agent) cancelAll(ctx context.Context, phone string, st State) error {
	if err := a.clearState(ctx, phone, st); err != nil {
		return err
	}
	if err := a.targets.Delete(ctx, phone); err != nil {
		return fmt.Errorf("failed to clear media target: %w", err)
	}
	a.buffer.Cancel(phone)
	return nil
}

func (a *Agent) releaseImages(ctx context.Context, refs []domain.MediaRef) {
	for _, ref := range refs {
		if err := a.media.Delete(ctx, ref.ExternalID, domain.MediaImage); err != nil {
			a.logger.Warn("Failed to release image", zap.String("external_id", ref.ExternalID), zap.Error(err))
		}
	}
}

// Snapshot is the debug view of one phone's ephemeral state
type Snapshot struct {
	Phone   string                `json:"phone"`
	State   *State                `json:"state,omitempty"`
	Expired bool                  `json:"expired"`
	Target  *MediaTarget          `json:"media_target,omitempty"`
	Buffer  *aggregator.Composite `json:"buffer,omitempty"`
}

// Inspect returns the raw ephemeral state for phone without applying expiry
func (a *Agent) Inspect(ctx context.Context, phone string) (Snapshot, error) {
	snap := Snapshot{Phone: phone}

	st, err := a.states.Get(ctx, phone)
	switch {
	case err == nil:
		snap.State = &st
		snap.Expired = st.Expired(a.now(), a.cfg.StateTimeout)
	case !errors.Is(err, session.ErrNotFound):
		return snap, fmt.Errorf("failed to load state: %w", err)
	}

	target, err := a.targets.Get(ctx, phone)
	switch {
	case err == nil:
		snap.Target = &target
	case !errors.Is(err, session.ErrNotFound):
		return snap, fmt.Errorf("failed to load media target: %w", err)
	}

	if c, ok := a.buffer.Peek(phone); ok {
		snap.Buffer = &c
	}
	return snap, nil
}

// Reset drops state, media target and buffer for phone
func (a *Agent) Reset(ctx context.Context, phone string) error {
	st, err := a.loadState(ctx, phone)
	if err != nil {
		return err
	}
	return a.cancelAll(ctx, phone, st)
}
