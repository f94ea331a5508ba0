package shop

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Callback payload markers for navigation buttons. Anything else in a
// callback is either a product id (MENU), a line-item id (CART), or a
// serialized add-to-cart selection (PRODUCT).
const (
	payloadCart = "cart"
	payloadMenu = "menu"
)

// ErrBadPayload marks a corrupt callback payload. The bot only ever receives
// payloads it serialized itself, so this is a programmer-error class fault:
// it is logged at the dispatch boundary, never silently ignored.
var ErrBadPayload = errors.New("shop: corrupt callback payload")

// addSelection is the compact structure carried in a quantity-option
// button's callback data.
type addSelection struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"qty"`
}

func encodeAddSelection(productID string, quantity int) string {
	data, _ := json.Marshal(addSelection{ProductID: productID, Quantity: quantity})
	return string(data)
}

// isAddSelection reports whether a payload looks like a serialized selection
// rather than a bare id or marker.
func isAddSelection(payload string) bool {
	return strings.HasPrefix(payload, "{")
}

func decodeAddSelection(payload string) (addSelection, error) {
	var sel addSelection
	if err := json.Unmarshal([]byte(payload), &sel); err != nil {
		return addSelection{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if sel.ProductID == "" || sel.Quantity < 1 {
		return addSelection{}, fmt.Errorf("%w: id=%q qty=%d", ErrBadPayload, sel.ProductID, sel.Quantity)
	}
	return sel, nil
}

// quantityOptions are the human labels offered on the product view; the
// quantity is the leading integer token of each label.
var quantityOptions = []string{"1 pc", "2 pcs", "5 pcs"}

// parseQuantityLabel extracts the leading integer token from a label like
// "2 pcs".
func parseQuantityLabel(label string) (int, error) {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return 0, fmt.Errorf("shop: empty quantity label")
	}
	quantity, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("shop: quantity label %q: %w", label, err)
	}
	return quantity, nil
}
