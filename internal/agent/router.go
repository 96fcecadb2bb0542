package agent

import (
	"context"
	"errors"

	"shuttle-market/internal/domain"
	"shuttle-market/internal/repository"

	"github.com/google/uuid"
)

const (
	selectionLimit = 10
	listingLimit   = 20
)

func (a *Agent) onIdle(ctx context.Context, t *turn) ([]Reply, error) {
	if t.in.kind == inputText {
		if IsGreeting(t.in.text) {
			return []Reply{mainMenu("")}, nil
		}
		return []Reply{textReply(msgUseButtons), mainMenu("")}, nil
	}
	if t.in.kind != inputButton {
		return []Reply{textReply(msgUseButtons), mainMenu("")}, nil
	}

	switch t.in.intent.Kind {
	case IntentAddProduct:
		if err := a.saveState(ctx, t.phone, State{Step: StepAwaitingImage, Intent: IntentAddProduct}); err != nil {
			return nil, err
		}
		return []Reply{buttonsReply(msgSendPhoto, cancelButton())}, nil

	case IntentListProducts:
		products, err := a.catalog.FindProductsBySeller(ctx, t.seller.ID, repository.ProductFilter{}, listingLimit)
		if err != nil {
			return nil, err
		}
		if len(products) == 0 {
			return []Reply{textReply(msgNoProducts), mainMenu("")}, nil
		}
		return []Reply{textReply(productList(products)), mainMenu("")}, nil

	case IntentUpdateProduct, IntentDeleteProduct:
		products, err := a.catalog.FindProductsBySeller(ctx, t.seller.ID, repository.ProductFilter{}, selectionLimit)
		if err != nil {
			return nil, err
		}
		if len(products) == 0 {
			return []Reply{textReply(msgNoProducts), mainMenu("")}, nil
		}
		if err := a.saveState(ctx, t.phone, State{Step: StepAwaitingProductSelection, Intent: t.in.intent.Kind}); err != nil {
			return nil, err
		}
		body := "Which product do you want to update? Pick one or type its name."
		if t.in.intent.Kind == IntentDeleteProduct {
			body = "Which product do you want to delete? Pick one or type its name."
		}
		return []Reply{selectionList(t.in.intent.Kind, products, body)}, nil

	case IntentSelectProduct, IntentUpdateProductID, IntentDeleteProductID:
		// Rows from a list sent before the state expired still work
		return a.selectProduct(ctx, t, t.in.intent)
	}

	return []Reply{textReply(msgUseButtons), mainMenu("")}, nil
}

func (a *Agent) onAwaitingImage(ctx context.Context, t *turn) ([]Reply, error) {
	if t.in.kind != inputImage {
		return []Reply{buttonsReply(msgSendPhoto, cancelButton())}, nil
	}

	ref, rejection, err := a.storeImage(ctx, t.in.media)
	if err != nil {
		return nil, err
	}
	if rejection != "" {
		return []Reply{buttonsReply(rejection, cancelButton())}, nil
	}

	st := t.state
	st.Step = StepAwaitingProductDetails
	st.Data.Images = []domain.MediaRef{ref}
	st.Data.ImageURL = ref.URL
	if err := a.saveState(ctx, t.phone, st); err != nil {
		a.releaseImages(ctx, []domain.MediaRef{ref})
		return nil, err
	}
	return []Reply{buttonsReply(msgDescribe, cancelButton())}, nil
}

func (a *Agent) onAwaitingProductDetails(ctx context.Context, t *turn) ([]Reply, error) {
	switch t.in.kind {
	case inputImage:
		if len(t.state.Data.Images) >= domain.MaxProductImages {
			return []Reply{buttonsReply("You've reached 5 photos. Now send the details: *name, price, description*", cancelButton())}, nil
		}
		ref, rejection, err := a.storeImage(ctx, t.in.media)
		if err != nil {
			return nil, err
		}
		if rejection != "" {
			return []Reply{buttonsReply(rejection, cancelButton())}, nil
		}
		st := t.state
		st.Data.Images = append(st.Data.Images, ref)
		if err := a.saveState(ctx, t.phone, st); err != nil {
			a.releaseImages(ctx, []domain.MediaRef{ref})
			return nil, err
		}
		return []Reply{buttonsReply("📸 Photo added. Now send the details: *name, price, description*", cancelButton())}, nil

	case inputVideo:
		return []Reply{buttonsReply(msgVideoFirst, cancelButton())}, nil

	case inputText:
		fields := ExtractProductDetails(t.in.text)
		if fields.Name == "" {
			return []Reply{buttonsReply(msgNeedName, cancelButton())}, nil
		}

		product := a.buildProduct(t.seller.ID, fields, t.state.Data.Images)
		if err := a.catalog.CreateProduct(ctx, product); err != nil {
			if errors.Is(err, domain.ErrInvalidProduct) {
				return []Reply{buttonsReply(msgNeedName, cancelButton())}, nil
			}
			return nil, err
		}
		// The images now belong to the product, so the state is dropped rather than cleared
		if err := a.dropState(ctx, t.phone); err != nil {
			return nil, err
		}
		return createdReplies(product, fields), nil
	}

	return []Reply{buttonsReply(msgDescribe, cancelButton())}, nil
}

func (a *Agent) onAwaitingProductSelection(ctx context.Context, t *turn) ([]Reply, error) {
	switch t.in.kind {
	case inputButton:
		switch t.in.intent.Kind {
		case IntentSelectProduct, IntentUpdateProductID, IntentDeleteProductID:
			return a.selectProduct(ctx, t, t.in.intent)
		}

	case inputText:
		matches, err := a.catalog.FindProductByFuzzyName(ctx, t.seller.ID, t.in.text)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 0:
			if err := a.dropState(ctx, t.phone); err != nil {
				return nil, err
			}
			return []Reply{textReply(msgNoMatch), mainMenu("")}, nil
		case 1:
			return a.selectProduct(ctx, t, Intent{Kind: IntentSelectProduct, ProductID: matches[0].ID})
		default:
			if err := a.saveState(ctx, t.phone, t.state); err != nil {
				return nil, err
			}
			return []Reply{selectionList(t.state.Intent, matches, "Several products match. Which one?")}, nil
		}
	}

	return []Reply{buttonsReply("Please pick a product from the list, or type its name.", cancelButton())}, nil
}

// selectProduct moves to the update or delete branch for one product
func (a *Agent) selectProduct(ctx context.Context, t *turn, intent Intent) ([]Reply, error) {
	action := t.state.Intent
	switch intent.Kind {
	case IntentUpdateProductID:
		action = IntentUpdateProduct
	case IntentDeleteProductID:
		action = IntentDeleteProduct
	}
	if action != IntentDeleteProduct {
		action = IntentUpdateProduct
	}

	product, replies, err := a.findProduct(ctx, t, intent.ProductID)
	if product == nil {
		return replies, err
	}

	if action == IntentDeleteProduct {
		st := State{Step: StepConfirmDelete, Intent: action, Data: StateData{ProductID: product.ID}}
		if err := a.saveState(ctx, t.phone, st); err != nil {
			return nil, err
		}
		return []Reply{confirmDelete(product)}, nil
	}

	st := State{Step: StepAwaitingUpdateField, Intent: action, Data: StateData{ProductID: product.ID}}
	if err := a.saveState(ctx, t.phone, st); err != nil {
		return nil, err
	}
	return []Reply{
		buttonsReply(productSummary("✏️ Editing", product)+"\n\n"+msgPickField, fieldButtons()...),
		buttonsReply("Or manage its photos and video:", mediaButtons(product)...),
	}, nil
}

func (a *Agent) onAwaitingUpdateField(ctx context.Context, t *turn) ([]Reply, error) {
	if t.in.kind == inputButton && t.in.intent.Kind == IntentUpdateField {
		st := t.state
		st.Step = StepAwaitingUpdateValue
		st.Data.Field = t.in.intent.Field
		if err := a.saveState(ctx, t.phone, st); err != nil {
			return nil, err
		}
		return []Reply{buttonsReply(askValue(st.Data.Field), cancelButton())}, nil
	}
	return []Reply{buttonsReply(msgPickField, fieldButtons()...)}, nil
}

func (a *Agent) onAwaitingUpdateValue(ctx context.Context, t *turn) ([]Reply, error) {
	field := t.state.Data.Field
	if t.in.kind != inputText {
		return []Reply{buttonsReply(askValue(field), cancelButton())}, nil
	}

	product, replies, err := a.findProduct(ctx, t, t.state.Data.ProductID)
	if product == nil {
		return replies, err
	}

	switch field {
	case FieldPrice:
		price, err := CoercePrice(t.in.text)
		if err != nil {
			return []Reply{buttonsReply(invalidValue(field), cancelButton())}, nil
		}
		product.Price = price
	case FieldStock:
		stock, err := CoerceStock(t.in.text)
		if err != nil {
			return []Reply{buttonsReply(invalidValue(field), cancelButton())}, nil
		}
		product.Stock = stock
	default:
		name, err := CoerceName(t.in.text)
		if err != nil {
			return []Reply{buttonsReply(invalidValue(field), cancelButton())}, nil
		}
		product.Name = name
	}

	if err := a.catalog.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, domain.ErrInvalidProduct) {
			return []Reply{buttonsReply(invalidValue(field), cancelButton())}, nil
		}
		if errors.Is(err, repository.ErrProductNotFound) {
			return a.productGone(ctx, t)
		}
		return nil, err
	}
	if err := a.dropState(ctx, t.phone); err != nil {
		return nil, err
	}
	return []Reply{buttonsReply(productSummary("✅ Product updated", product), menuButton())}, nil
}

func (a *Agent) onConfirmDelete(ctx context.Context, t *turn) ([]Reply, error) {
	if t.in.kind == inputButton {
		switch t.in.intent.Kind {
		case IntentConfirmDeleteYes:
			err := a.catalog.DeleteProduct(ctx, t.seller.ID, t.state.Data.ProductID)
			if errors.Is(err, repository.ErrProductNotFound) {
				return a.productGone(ctx, t)
			}
			if err != nil {
				return nil, err
			}
			if err := a.dropState(ctx, t.phone); err != nil {
				return nil, err
			}
			return []Reply{buttonsReply(msgDeleted, menuButton())}, nil

		case IntentConfirmDeleteNo:
			if err := a.dropState(ctx, t.phone); err != nil {
				return nil, err
			}
			return []Reply{textReply(msgCancelled), mainMenu("")}, nil
		}
	}

	product, replies, err := a.findProduct(ctx, t, t.state.Data.ProductID)
	if product == nil {
		return replies, err
	}
	return []Reply{confirmDelete(product)}, nil
}

// findProduct loads a product owned by the seller. When it is gone the state is reset
// and the returned replies explain why.
func (a *Agent) findProduct(ctx context.Context, t *turn, id uuid.UUID) (*domain.Product, []Reply, error) {
	product, err := a.catalog.FindProductByID(ctx, t.seller.ID, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		replies, err := a.productGone(ctx, t)
		return nil, replies, err
	}
	if err != nil {
		return nil, nil, err
	}
	return product, nil, nil
}

func (a *Agent) productGone(ctx context.Context, t *turn) ([]Reply, error) {
	if err := a.clearState(ctx, t.phone, t.state); err != nil {
		return nil, err
	}
	return []Reply{textReply(msgProductNotFound), mainMenu("")}, nil
}

func (a *Agent) buildProduct(sellerID uuid.UUID, f ProposedFields, images []domain.MediaRef) *domain.Product {
	product := domain.NewProduct(sellerID, f.Name, f.Price, a.now())
	product.Description = f.Description
	product.Brand = f.Brand
	product.Category = f.Category
	product.Condition = f.Condition
	if f.Stock != nil {
		product.Stock = *f.Stock
	}
	if len(f.Specs) > 0 {
		product.Specs = f.Specs
	}
	if len(images) > domain.MaxProductImages {
		images = images[:domain.MaxProductImages]
	}
	for _, ref := range images {
		ref.Type = domain.MediaImage
		product.Images = append(product.Images, ref)
	}
	return product
}

func createdReplies(p *domain.Product, f ProposedFields) []Reply {
	buttons := mediaButtons(p)
	replies := []Reply{
		buttonsReply(productSummary("✅ Product added!", p), buttons[0], buttons[1], menuButton()),
	}
	if !f.PriceFound || p.Price == 0 {
		replies = append(replies, textReply(msgPriceTip))
	}
	return replies
}
