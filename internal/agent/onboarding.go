package agent

import (
	"context"
	"fmt"

	"shuttle-market/internal/domain"
)

// startOnboarding registers a placeholder seller for an unknown phone and asks for a name
func (a *Agent) startOnboarding(ctx context.Context, phone string) ([]Reply, error) {
	if _, err := a.catalog.CreateSeller(ctx, phone); err != nil {
		return nil, err
	}
	if err := a.saveState(ctx, phone, State{Step: StepAwaitingName}); err != nil {
		return nil, err
	}
	return []Reply{textReply(msgWelcome)}, nil
}

// handleOnboarding runs the name and store-name questions. Nothing else is reachable until both are answered.
func (a *Agent) handleOnboarding(ctx context.Context, t *turn) ([]Reply, error) {
	seller := t.seller

	switch {
	case t.state.Step == StepAwaitingName && t.in.kind == inputText:
		name, err := CoerceName(t.in.text)
		if err != nil {
			return []Reply{textReply(msgAskName)}, nil
		}
		seller.Name = name
		seller.OnboardingStep = domain.OnboardingNameEntered
		if err := a.catalog.SaveSeller(ctx, seller); err != nil {
			return nil, err
		}
		if err := a.saveState(ctx, t.phone, State{Step: StepAwaitingStoreName}); err != nil {
			return nil, err
		}
		return []Reply{textReply(askStoreName(name))}, nil

	case t.state.Step == StepAwaitingStoreName && t.in.kind == inputText && seller.OnboardingStep == domain.OnboardingNameEntered:
		storeName, err := CoerceName(t.in.text)
		if err != nil {
			return []Reply{textReply(askStoreName(seller.Name))}, nil
		}
		seller.StoreName = storeName
		seller.OnboardingStep = domain.OnboardingComplete
		seller.Status = domain.SellerPending
		if err := a.catalog.SaveSeller(ctx, seller); err != nil {
			return nil, err
		}
		if err := a.dropState(ctx, t.phone); err != nil {
			return nil, err
		}
		return []Reply{
			textReply(onboardingComplete(storeName)),
			mainMenu(fmt.Sprintf("Welcome, %s! What would you like to do?", seller.Name)),
		}, nil
	}

	// Anything else re-asks the question matching the stored progress
	if seller.OnboardingStep == domain.OnboardingNameEntered {
		if err := a.saveState(ctx, t.phone, State{Step: StepAwaitingStoreName}); err != nil {
			return nil, err
		}
		return []Reply{textReply(askStoreName(seller.Name))}, nil
	}

	if err := a.saveState(ctx, t.phone, State{Step: StepAwaitingName}); err != nil {
		return nil, err
	}
	return []Reply{textReply(msgAskName)}, nil
}
