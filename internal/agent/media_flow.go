package agent

import (
	"context"
	"errors"
	"fmt"

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

// handleMediaIntent arms or clears media for a product. Valid from any step.
func (a *Agent) handleMediaIntent(ctx context.Context, t *turn) ([]Reply, error) {
	intent := t.in.intent

	product, replies, err := a.findProduct(ctx, t, intent.ProductID)
	if product == nil {
		return replies, err
	}
	if t.state.Step != StepIdle {
		if err := a.clearState(ctx, t.phone, t.state); err != nil {
			return nil, err
		}
	}

	switch intent.Kind {
	case IntentAddImages:
		left := product.ImageSlotsLeft()
		if left == 0 {
			return []Reply{buttonsReply(imageLimitReached(product), mediaButtons(product)[2], menuButton())}, nil
		}
		if err := a.armTarget(ctx, t.phone, domain.MediaImage, product.ID); err != nil {
			return nil, err
		}
		return []Reply{buttonsReply(
			fmt.Sprintf("📸 Send up to %d photo(s) for *%s* now.", left, product.Name),
			menuButton(),
		)}, nil

	case IntentAddVideo:
		if err := a.armTarget(ctx, t.phone, domain.MediaVideo, product.ID); err != nil {
			return nil, err
		}
		body := fmt.Sprintf("🎬 Send a video of *%s* now (MP4, up to %d seconds).", product.Name, a.cfg.VideoMaxSeconds)
		if product.Video != nil {
			body += " It will replace the current one."
		}
		return []Reply{buttonsReply(body, menuButton())}, nil
	}

	// IntentClearMedia
	if err := a.targets.Delete(ctx, t.phone); err != nil {
		return nil, fmt.Errorf("failed to clear media target: %w", err)
	}
	product, err = a.catalog.ClearProductMedia(ctx, t.seller.ID, product.ID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return a.productGone(ctx, t)
	}
	if err != nil {
		return nil, err
	}
	buttons := mediaButtons(product)
	return []Reply{buttonsReply(msgMediaCleared, buttons[0], buttons[1], menuButton())}, nil
}

func (a *Agent) armTarget(ctx context.Context, phone string, mediaType domain.MediaType, productID uuid.UUID) error {
	target := MediaTarget{
		MediaType: mediaType,
		ProductID: productID,
		ExpiresAt: a.now().Add(a.cfg.MediaTargetTTL),
	}
	if err := a.targets.Set(ctx, phone, target, a.cfg.MediaTargetTTL); err != nil {
		return fmt.Errorf("failed to save media target: %w", err)
	}
	return nil
}

// handleMediaTarget attaches a bare image or video to the product chosen earlier
func (a *Agent) handleMediaTarget(ctx context.Context, t *turn) ([]Reply, error) {
	target, err := a.targets.Get(ctx, t.phone)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("failed to load media target: %w", err)
	}
	if err != nil || !target.Live(a.now()) {
		if err == nil {
			if err := a.targets.Delete(ctx, t.phone); err != nil {
				return nil, fmt.Errorf("failed to clear media target: %w", err)
			}
		}
		if t.state.Step != StepIdle {
			if err := a.clearState(ctx, t.phone, t.state); err != nil {
				return nil, err
			}
		}
		return []Reply{textReply(msgPickProduct), mainMenu("")}, nil
	}

	wanted := domain.MediaImage
	if t.in.kind == inputVideo {
		wanted = domain.MediaVideo
	}
	if target.MediaType != wanted {
		if target.MediaType == domain.MediaVideo {
			return []Reply{buttonsReply("I'm waiting for a video. Please send a video clip, or tap Main menu.", menuButton())}, nil
		}
		return []Reply{buttonsReply("I'm waiting for photos. Please send a photo, or tap Main menu.", menuButton())}, nil
	}

	if wanted == domain.MediaVideo {
		return a.attachVideo(ctx, t, target)
	}
	return a.attachImage(ctx, t, target)
}

func (a *Agent) attachImage(ctx context.Context, t *turn, target MediaTarget) ([]Reply, error) {
	product, replies, err := a.findTargetProduct(ctx, t, target)
	if product == nil {
		return replies, err
	}
	if product.ImageSlotsLeft() == 0 {
		if err := a.targets.Delete(ctx, t.phone); err != nil {
			return nil, fmt.Errorf("failed to clear media target: %w", err)
		}
		return []Reply{buttonsReply(imageLimitReached(product), menuButton())}, nil
	}

	ref, rejection, err := a.storeImage(ctx, t.in.media)
	if err != nil {
		return nil, err
	}
	if rejection != "" {
		// The target stays armed so the seller can retry
		return []Reply{buttonsReply(rejection, menuButton())}, nil
	}

	product, err = a.catalog.AddProductImage(ctx, t.seller.ID, target.ProductID, ref)
	if errors.Is(err, service.ErrImageLimitReached) {
		a.releaseImages(ctx, []domain.MediaRef{ref})
		if err := a.targets.Delete(ctx, t.phone); err != nil {
			return nil, fmt.Errorf("failed to clear media target: %w", err)
		}
		return []Reply{buttonsReply(imageLimitReached(product), menuButton())}, nil
	}
	if err != nil {
		a.releaseImages(ctx, []domain.MediaRef{ref})
		if errors.Is(err, repository.ErrProductNotFound) {
			return a.targetGone(ctx, t)
		}
		return nil, err
	}

	if product.ImageSlotsLeft() > 0 {
		if err := a.armTarget(ctx, t.phone, domain.MediaImage, product.ID); err != nil {
			return nil, err
		}
	} else if err := a.targets.Delete(ctx, t.phone); err != nil {
		return nil, fmt.Errorf("failed to clear media target: %w", err)
	}
	return []Reply{buttonsReply(photoAdded(product), menuButton())}, nil
}

func (a *Agent) attachVideo(ctx context.Context, t *turn, target MediaTarget) ([]Reply, error) {
	product, replies, err := a.findTargetProduct(ctx, t, target)
	if product == nil {
		return replies, err
	}

	video, rejection, err := a.storeVideo(ctx, t.in.media)
	if err != nil {
		return nil, err
	}
	if rejection != "" {
		return []Reply{buttonsReply(rejection, menuButton())}, nil
	}

	product, err = a.catalog.SetProductVideo(ctx, t.seller.ID, product.ID, video)
	if err != nil {
		if releaseErr := a.media.Delete(ctx, video.ExternalID, domain.MediaVideo); releaseErr != nil {
			a.logger.Warn("Failed to release video", zap.String("external_id", video.ExternalID), zap.Error(releaseErr))
		}
		if errors.Is(err, repository.ErrProductNotFound) {
			return a.targetGone(ctx, t)
		}
		return nil, err
	}
	if err := a.targets.Delete(ctx, t.phone); err != nil {
		return nil, fmt.Errorf("failed to clear media target: %w", err)
	}
	return []Reply{buttonsReply(
		fmt.Sprintf("🎬 Video added to *%s* (%ds).", product.Name, video.DurationSeconds),
		menuButton(),
	)}, nil
}

func (a *Agent) findTargetProduct(ctx context.Context, t *turn, target MediaTarget) (*domain.Product, []Reply, error) {
	product, err := a.catalog.FindProductByID(ctx, t.seller.ID, target.ProductID)
	if errors.Is(err, repository.ErrProductNotFound) {
		replies, err := a.targetGone(ctx, t)
		return nil, replies, err
	}
	if err != nil {
		return nil, nil, err
	}
	return product, nil, nil
}

func (a *Agent) targetGone(ctx context.Context, t *turn) ([]Reply, error) {
	if err := a.targets.Delete(ctx, t.phone); err != nil {
		return nil, fmt.Errorf("failed to clear media target: %w", err)
	}
	return []Reply{textReply(msgProductNotFound), mainMenu("")}, nil
}

// storeImage downloads and uploads one image. A non-empty rejection is a message for the seller.
func (a *Agent) storeImage(ctx context.Context, m *whatsapp.Media) (domain.MediaRef, string, error) {
	if m == nil {
		return domain.MediaRef{}, msgSendPhoto, nil
	}
	dl, err := a.media.Download(ctx, m.ID, a.cfg.ImageMaxBytes)
	if err != nil {
		if rejection := rejectionFor(err, domain.MediaImage, a.cfg.VideoMaxSeconds); rejection != "" {
			return domain.MediaRef{}, rejection, nil
		}
		return domain.MediaRef{}, "", err
	}

	res, err := a.media.Upload(ctx, dl.Data, media.UploadOptions{Folder: "products", ResourceType: domain.MediaImage})
	if err != nil {
		if rejection := rejectionFor(err, domain.MediaImage, a.cfg.VideoMaxSeconds); rejection != "" {
			return domain.MediaRef{}, rejection, nil
		}
		return domain.MediaRef{}, "", err
	}
	return domain.MediaRef{URL: res.URL, ExternalID: res.ExternalID, Type: domain.MediaImage}, "", nil
}

// storeVideo downloads, probes and uploads one clip
func (a *Agent) storeVideo(ctx context.Context, m *whatsapp.Media) (domain.Video, string, error) {
	if m == nil {
		return domain.Video{}, msgVideoUnsupported, nil
	}
	dl, err := a.media.Download(ctx, m.ID, a.cfg.VideoMaxBytes)
	if err != nil {
		if rejection := rejectionFor(err, domain.MediaVideo, a.cfg.VideoMaxSeconds); rejection != "" {
			return domain.Video{}, rejection, nil
		}
		return domain.Video{}, "", err
	}

	res, err := a.media.Upload(ctx, dl.Data, media.UploadOptions{
		Folder:             "products/videos",
		ResourceType:       domain.MediaVideo,
		MaxDurationSeconds: a.cfg.VideoMaxSeconds,
	})
	if err != nil {
		if rejection := rejectionFor(err, domain.MediaVideo, a.cfg.VideoMaxSeconds); rejection != "" {
			return domain.Video{}, rejection, nil
		}
		return domain.Video{}, "", err
	}
	return domain.Video{URL: res.URL, ExternalID: res.ExternalID, DurationSeconds: res.DurationSeconds}, "", nil
}

func rejectionFor(err error, mediaType domain.MediaType, maxSeconds int) string {
	switch {
	case errors.Is(err, media.ErrAssetTooLarge) && mediaType == domain.MediaVideo:
		return msgVideoTooLarge
	case errors.Is(err, media.ErrAssetTooLarge):
		return msgImageTooLarge
	case errors.Is(err, media.ErrVideoTooLong):
		return videoTooLong(maxSeconds)
	case errors.Is(err, media.ErrUnsupportedType) && mediaType == domain.MediaVideo:
		return msgVideoUnsupported
	case errors.Is(err, media.ErrUnsupportedType):
		return "That file doesn't look like a photo. Please send a JPEG or PNG image."
	}
	return ""
}

// createFromComposite turns a flushed buffer into a product, or into a details prompt when no name was found
func (a *Agent) createFromComposite(ctx context.Context, seller *domain.Seller, c aggregator.Composite) ([]Reply, error) {
	if c.InputType == aggregator.InputTextOnly || len(c.Images) == 0 {
		return []Reply{textReply(msgTextOnlyHint), mainMenu("")}, nil
	}

	images := c.Images
	if len(images) > domain.MaxProductImages {
		images = images[:domain.MaxProductImages]
	}

	refs := make([]domain.MediaRef, 0, len(images))
	var rejection string
	for _, img := range images {
		ref, reason, err := a.storeImage(ctx, &whatsapp.Media{ID: img.Handle, MimeType: img.MimeType})
		if err != nil {
			a.releaseImages(ctx, refs)
			return nil, err
		}
		if reason != "" {
			rejection = reason
			continue
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		if rejection == "" {
			rejection = msgImageTooLarge
		}
		return []Reply{textReply(rejection), mainMenu("")}, nil
	}

	fields := ExtractProductDetails(c.Text)
	if fields.Name == "" {
		st := State{
			Step:   StepAwaitingProductDetails,
			Intent: IntentAddProduct,
			Data:   StateData{Images: refs, ImageURL: refs[0].URL},
		}
		if err := a.saveState(ctx, c.Phone, st); err != nil {
			a.releaseImages(ctx, refs)
			return nil, err
		}
		return []Reply{buttonsReply(msgDescribe, cancelButton())}, nil
	}

	product := a.buildProduct(seller.ID, fields, refs)
	if err := a.catalog.CreateProduct(ctx, product); err != nil {
		a.releaseImages(ctx, refs)
		if errors.Is(err, domain.ErrInvalidProduct) {
			return []Reply{textReply(msgNeedName), mainMenu("")}, nil
		}
		return nil, err
	}

	a.logger.Info("Product created from chat",
		zap.String("phone", c.Phone),
		zap.String("product_id", product.ID.String()),
		zap.String("input_type", string(c.InputType)),
		zap.Int("images", len(refs)),
	)

	replies := createdReplies(product, fields)
	if rejection != "" {
		replies = append(replies, textReply("Some photos were skipped: "+rejection))
	}
	return replies, nil
}
