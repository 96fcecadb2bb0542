package agent

import (
	"strings"

	"github.com/google/uuid"
)

// IntentKind is the closed set of actions a button or list row can carry
type IntentKind string

const (
	IntentMainMenu         IntentKind = "main_menu"
	IntentAddProduct       IntentKind = "add_product"
	IntentListProducts     IntentKind = "list_products"
	IntentUpdateProduct    IntentKind = "update_product"
	IntentDeleteProduct    IntentKind = "delete_product"
	IntentSelectProduct    IntentKind = "select_product"
	IntentUpdateProductID  IntentKind = "update_product_id"
	IntentDeleteProductID  IntentKind = "delete_product_id"
	IntentUpdateField      IntentKind = "update_field"
	IntentConfirmDeleteYes IntentKind = "confirm_delete_yes"
	IntentConfirmDeleteNo  IntentKind = "confirm_delete_no"
	IntentAddImages        IntentKind = "add_images"
	IntentAddVideo         IntentKind = "add_video"
	IntentClearMedia       IntentKind = "clear_media"
	IntentCancel           IntentKind = "cancel"
	IntentDone             IntentKind = "done"
)

// Field is a product attribute editable from chat
type Field string

const (
	FieldPrice Field = "PRICE"
	FieldStock Field = "STOCK"
	FieldName  Field = "NAME"
)

// Button and list-row identifiers
const (
	ButtonMainMenu         = "MAIN_MENU"
	ButtonAddProduct       = "ADD_PRODUCT"
	ButtonListProducts     = "LIST_PRODUCTS"
	ButtonUpdateProduct    = "UPDATE_PRODUCT"
	ButtonDeleteProduct    = "DELETE_PRODUCT"
	ButtonConfirmDeleteYes = "CONFIRM_DELETE_YES"
	ButtonConfirmDeleteNo  = "CONFIRM_DELETE_NO"
	ButtonCancel           = "CANCEL"
	ButtonDone             = "DONE"

	prefixSelectProduct = "SELECT_PRODUCT_"
	prefixUpdateProduct = "UPDATE_PRODUCT_"
	prefixDeleteProduct = "DELETE_PRODUCT_"
	prefixUpdateField   = "UPDATE_FIELD_"
	prefixAddImages     = "ADD_IMAGES_"
	prefixAddVideo      = "ADD_VIDEO_"
	prefixClearMedia    = "CLEAR_MEDIA_"
)

// Intent is a parsed button press. ProductID and Field are set only for the kinds that carry them.
type Intent struct {
	Kind      IntentKind
	ProductID uuid.UUID
	Field     Field
}

var staticIntents = map[string]IntentKind{
	ButtonMainMenu:         IntentMainMenu,
	ButtonAddProduct:       IntentAddProduct,
	ButtonListProducts:     IntentListProducts,
	ButtonUpdateProduct:    IntentUpdateProduct,
	ButtonDeleteProduct:    IntentDeleteProduct,
	ButtonConfirmDeleteYes: IntentConfirmDeleteYes,
	ButtonConfirmDeleteNo:  IntentConfirmDeleteNo,
	ButtonCancel:           IntentCancel,
	ButtonDone:             IntentDone,
}

var productPrefixes = []struct {
	prefix string
	kind   IntentKind
}{
	{prefixSelectProduct, IntentSelectProduct},
	{prefixUpdateProduct, IntentUpdateProductID},
	{prefixDeleteProduct, IntentDeleteProductID},
	{prefixAddImages, IntentAddImages},
	{prefixAddVideo, IntentAddVideo},
	{prefixClearMedia, IntentClearMedia},
}

// ParseButton maps a reply identifier to an Intent. Unknown ids and malformed product ids return false.
func ParseButton(id string) (Intent, bool) {
	id = strings.TrimSpace(id)

	if kind, ok := staticIntents[id]; ok {
		return Intent{Kind: kind}, true
	}

	if strings.HasPrefix(id, prefixUpdateField) {
		switch f := Field(strings.TrimPrefix(id, prefixUpdateField)); f {
		case FieldPrice, FieldStock, FieldName:
			return Intent{Kind: IntentUpdateField, Field: f}, true
		}
		return Intent{}, false
	}

	for _, p := range productPrefixes {
		if !strings.HasPrefix(id, p.prefix) {
			continue
		}
		productID, err := uuid.Parse(strings.TrimPrefix(id, p.prefix))
		if err != nil {
			return Intent{}, false
		}
		return Intent{Kind: p.kind, ProductID: productID}, true
	}

	return Intent{}, false
}

// ButtonID renders an intent back into its identifier
func (i Intent) ButtonID() string {
	for id, kind := range staticIntents {
		if kind == i.Kind {
			return id
		}
	}
	if i.Kind == IntentUpdateField {
		return prefixUpdateField + string(i.Field)
	}
	for _, p := range productPrefixes {
		if p.kind == i.Kind {
			return p.prefix + i.ProductID.String()
		}
	}
	return ""
}

// isMenuIntent reports intents offered by the main menu; they restart the conversation from Idle
func (i Intent) isMenuIntent() bool {
	switch i.Kind {
	case IntentMainMenu, IntentAddProduct, IntentListProducts, IntentUpdateProduct, IntentDeleteProduct:
		return true
	}
	return false
}

// isMediaIntent reports intents that arm or clear media and are valid from any step
func (i Intent) isMediaIntent() bool {
	switch i.Kind {
	case IntentAddImages, IntentAddVideo, IntentClearMedia:
		return true
	}
	return false
}

var greetingWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "salam": true, "salaam": true, "assalam": true,
	"aoa": true, "menu": true, "start": true, "hola": true, "helo": true, "hii": true,
}

var doneWords = map[string]bool{
	"done": true, "finish": true, "finished": true, "save": true, "send": true,
}

var cancelWords = map[string]bool{
	"cancel": true, "stop": true, "exit": true, "quit": true, "reset": true, "abort": true,
}

// IsGreeting reports a short greeting that should bring up the menu
func IsGreeting(text string) bool {
	words := strings.Fields(normalizeWords(text))
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	return greetingWords[words[0]]
}

// IsCancel reports a message that is exactly a cancel keyword
func IsCancel(text string) bool {
	words := strings.Fields(normalizeWords(text))
	return len(words) == 1 && cancelWords[words[0]]
}

// IsDone reports a message that is exactly a completion keyword
func IsDone(text string) bool {
	words := strings.Fields(normalizeWords(text))
	return len(words) == 1 && doneWords[words[0]]
}

func normalizeWords(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '!', '.', ',', '?', ':', ';':
			return ' '
		}
		return r
	}, strings.ToLower(strings.TrimSpace(text)))
}
