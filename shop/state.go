// Package shop implements the storefront conversation: a per-chat finite
// state machine over the catalog and cart, persisted as a single state label
// in an external session store so the bot stays stateless between updates.
package shop

// State is a conversation step. The set is closed; the machine dispatches
// over it exhaustively.
type State string

const (
	// StateStart is the initial state of every conversation.
	StateStart State = "START"
	// StateMenu shows the product grid and waits for a selection.
	StateMenu State = "MENU"
	// StateProduct shows one product's detail and quantity options.
	StateProduct State = "PRODUCT"
	// StateCart shows the cart contents and per-item removal buttons.
	StateCart State = "CART"
)

// ParseState maps a persisted label back to a State. Unknown labels report
// ok=false; callers fall back to StateStart.
func ParseState(label string) (State, bool) {
	switch State(label) {
	case StateStart, StateMenu, StateProduct, StateCart:
		return State(label), true
	}
	return StateStart, false
}
