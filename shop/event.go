package shop

import (
	"context"
	"strconv"

	"shopbot/commerce"
)

// Event is one inbound update reduced to what the state machine needs:
// the conversation id, an optional callback payload, and the free text.
type Event struct {
	ChatID    int64
	MessageID int
	Text      string
	Payload   string
	// HasCallback distinguishes a button press from a typed message;
	// an empty payload with HasCallback set is still a callback.
	HasCallback bool
	// Start marks the literal /start command, which resets the
	// conversation from any state.
	Start bool
}

// chatKey doubles as the session-store key and the upstream cart reference
// for a conversation.
func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// Button is one inline keyboard button; Data is echoed back verbatim as the
// callback payload when pressed.
type Button struct {
	Text string
	Data string
}

// Messenger is the chat-transport capability surface the conversation uses.
// Implementations deliver to the conversation identified by chatID.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, buttons [][]Button) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, buttons [][]Button) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Commerce is the backend surface the conversation needs. *commerce.Client
// satisfies it; tests substitute a scripted fake.
type Commerce interface {
	ListProducts(ctx context.Context, limit int) ([]commerce.Product, error)
	GetProduct(ctx context.Context, id string) (*commerce.Product, error)
	GetFile(ctx context.Context, id string) (*commerce.File, error)
	GetCart(ctx context.Context, cartRef string) (*commerce.CartHeader, error)
	GetCartItems(ctx context.Context, cartRef string) ([]commerce.CartItem, error)
	AddToCart(ctx context.Context, cartRef, productID string, quantity int) (*commerce.CartItem, error)
	RemoveItem(ctx context.Context, cartRef, itemID string) error
}
