package agent

import (
	"fmt"
	"strconv"
	"strings"

	"shuttle-market/internal/domain"
	"shuttle-market/internal/whatsapp"
)

const (
	msgWelcome = "👋 Welcome to Shuttle Market! Let's set up your seller account.\n\nWhat's your name?"
	msgAskName = "What's your name?"

	msgUseButtons       = "Please use the menu buttons below to manage your inventory."
	msgCancelled        = "❌ Cancelled."
	msgApology          = "😔 Sorry, something went wrong on our side. Please try again in a moment."
	msgDeactivated      = "Your seller account has been deactivated. Please contact support to reactivate it."
	msgSendPhoto        = "📸 Send a photo of the product (max 2 MB)."
	msgDescribe         = "Great! Now describe the product in one message:\n*name, price, description*\n\ne.g. Yonex Astrox 88D, 15000, brand new 4U"
	msgNeedName         = "I couldn't find a product name in that. Please send: *name, price, description*"
	msgNoProducts       = "You don't have any products yet. Tap *Add product* to create one."
	msgPickProduct      = "Which product? Open the menu and choose *Update product* to pick one."
	msgProductNotFound  = "I couldn't find that product. It may have been deleted."
	msgNoMatch          = "No product matches that name."
	msgPickField        = "What would you like to change?"
	msgDeleted          = "🗑️ Product deleted."
	msgImageTooLarge    = "That photo is too large. Please send one under 2 MB."
	msgVideoTooLarge    = "That video file is too large. Please send a shorter clip."
	msgVideoUnsupported = "Please send the video as an MP4 clip."
	msgVideoFirst       = "Let's finish the product first. You can add a video right after it is created."
	msgMediaCleared     = "🧹 All photos and the video were removed."
	msgTextOnlyHint     = "To add a product, tap *Add product* or send photos with the description as the caption."
	msgPriceTip         = "💡 Tip: the price is 0. Use *Update product* to set it."
	msgNothingPending   = "There is nothing waiting to be saved."
)

func askStoreName(name string) string {
	return fmt.Sprintf("Nice to meet you, %s! What's the name of your store?", name)
}

func onboardingComplete(storeName string) string {
	return fmt.Sprintf("🎉 %s is registered!\n\nYour store is pending admin approval. You can add products now; they go live once you're approved.", storeName)
}

func mainMenu(body string) Reply {
	if body == "" {
		body = "What would you like to do?"
	}
	return listReply("Seller menu", body, "Menu", whatsapp.ListSection{
		Title: "Inventory",
		Rows: []whatsapp.ListRow{
			{ID: ButtonAddProduct, Title: "Add product", Description: "Photo + name + price"},
			{ID: ButtonListProducts, Title: "My products", Description: "See everything you sell"},
			{ID: ButtonUpdateProduct, Title: "Update product", Description: "Price, stock, name or media"},
			{ID: ButtonDeleteProduct, Title: "Delete product", Description: "Remove a listing"},
		},
	})
}

func cancelButton() whatsapp.Button {
	return whatsapp.Button{ID: ButtonCancel, Title: "Cancel"}
}

func menuButton() whatsapp.Button {
	return whatsapp.Button{ID: ButtonMainMenu, Title: "Main menu"}
}

func mediaButtons(p *domain.Product) []whatsapp.Button {
	return []whatsapp.Button{
		{ID: prefixAddImages + p.ID.String(), Title: "Add photos"},
		{ID: prefixAddVideo + p.ID.String(), Title: "Add video"},
		{ID: prefixClearMedia + p.ID.String(), Title: "Remove media"},
	}
}

func fieldButtons() []whatsapp.Button {
	return []whatsapp.Button{
		{ID: prefixUpdateField + string(FieldPrice), Title: "Price"},
		{ID: prefixUpdateField + string(FieldStock), Title: "Stock"},
		{ID: prefixUpdateField + string(FieldName), Title: "Name"},
	}
}

func askValue(field Field) string {
	switch field {
	case FieldPrice:
		return "Enter the new price in rupees (e.g. 15000 or 15k)."
	case FieldStock:
		return "Enter the new stock quantity (0 or more)."
	default:
		return "Enter the new product name."
	}
}

func invalidValue(field Field) string {
	switch field {
	case FieldPrice:
		return "That doesn't look like a price. Please send a number, e.g. 4500."
	case FieldStock:
		return "Stock must be a whole number, 0 or more."
	default:
		return "The name can't be empty."
	}
}

func formatPrice(price int64) string {
	digits := strconv.FormatInt(price, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "Rs " + b.String()
}

func productSummary(title string, p *domain.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n*%s*\n💰 %s\n📦 Stock: %d\n🏷️ %s", title, p.Name, formatPrice(p.Price), p.Stock, p.Category)
	if p.Brand != "" {
		fmt.Fprintf(&b, " · %s", p.Brand)
	}
	fmt.Fprintf(&b, " · %s", p.Condition)
	if p.Description != "" {
		fmt.Fprintf(&b, "\n📝 %s", p.Description)
	}
	fmt.Fprintf(&b, "\n🖼️ Photos: %d/%d", len(p.Images), domain.MaxProductImages)
	if p.Video != nil {
		fmt.Fprintf(&b, " · 🎬 video %ds", p.Video.DurationSeconds)
	}
	return b.String()
}

func productList(products []*domain.Product) string {
	var b strings.Builder
	b.WriteString("📋 Your products:\n")
	for i, p := range products {
		fmt.Fprintf(&b, "\n%d. %s · %s · stock %d", i+1, p.Name, formatPrice(p.Price), p.Stock)
	}
	return b.String()
}

func selectionList(action IntentKind, products []*domain.Product, body string) Reply {
	prefix := prefixUpdateProduct
	if action == IntentDeleteProduct {
		prefix = prefixDeleteProduct
	}
	rows := make([]whatsapp.ListRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, whatsapp.ListRow{
			ID:          prefix + p.ID.String(),
			Title:       p.Name,
			Description: fmt.Sprintf("%s · stock %d", formatPrice(p.Price), p.Stock),
		})
	}
	return listReply("Your products", body, "Choose", whatsapp.ListSection{Title: "Products", Rows: rows})
}

func confirmDelete(p *domain.Product) Reply {
	return buttonsReply(
		fmt.Sprintf("Delete *%s* (%s)? This also removes its photos and video.", p.Name, formatPrice(p.Price)),
		whatsapp.Button{ID: ButtonConfirmDeleteYes, Title: "Yes, delete"},
		whatsapp.Button{ID: ButtonConfirmDeleteNo, Title: "No, keep it"},
	)
}

func photoAdded(p *domain.Product) string {
	left := p.ImageSlotsLeft()
	if left == 0 {
		return fmt.Sprintf("✅ Photo added to *%s* (%d/%d). That's the maximum.", p.Name, len(p.Images), domain.MaxProductImages)
	}
	return fmt.Sprintf("✅ Photo added to *%s* (%d/%d). Send more or tap Main menu.", p.Name, len(p.Images), domain.MaxProductImages)
}

func imageLimitReached(p *domain.Product) string {
	return fmt.Sprintf("*%s* already has %d photos, the maximum. Remove media first to replace them.", p.Name, domain.MaxProductImages)
}

func videoTooLong(maxSeconds int) string {
	return fmt.Sprintf("That video is too long. Please send a clip of %d seconds or less.", maxSeconds)
}
