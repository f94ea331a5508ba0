package shop

import (
	"context"
	"fmt"

	"shopbot/commerce"
)

// fakeCommerce is a scripted commerce backend recording every call.
type fakeCommerce struct {
	products  []commerce.Product
	productBy map[string]*commerce.Product
	files     map[string]*commerce.File
	cart      *commerce.CartHeader
	items     []commerce.CartItem

	addItem   *commerce.CartItem
	addErr    error
	removeErr error

	calls []string
}

func newFakeCommerce() *fakeCommerce {
	return &fakeCommerce{
		productBy: make(map[string]*commerce.Product),
		files:     make(map[string]*commerce.File),
		cart:      &commerce.CartHeader{ID: "fake", FormattedPrice: "$0.00", Currency: "USD"},
	}
}

func (f *fakeCommerce) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeCommerce) ListProducts(_ context.Context, _ int) ([]commerce.Product, error) {
	f.record("ListProducts")
	return f.products, nil
}

func (f *fakeCommerce) GetProduct(_ context.Context, id string) (*commerce.Product, error) {
	f.record("GetProduct:" + id)
	return f.productBy[id], nil
}

func (f *fakeCommerce) GetFile(_ context.Context, id string) (*commerce.File, error) {
	f.record("GetFile:" + id)
	if file, ok := f.files[id]; ok {
		return file, nil
	}
	return nil, &commerce.APIError{StatusCode: 404, Title: "Not Found"}
}

func (f *fakeCommerce) GetCart(_ context.Context, ref string) (*commerce.CartHeader, error) {
	f.record("GetCart:" + ref)
	return f.cart, nil
}

func (f *fakeCommerce) GetCartItems(_ context.Context, ref string) ([]commerce.CartItem, error) {
	f.record("GetCartItems:" + ref)
	return f.items, nil
}

func (f *fakeCommerce) AddToCart(_ context.Context, ref, productID string, quantity int) (*commerce.CartItem, error) {
	f.record(fmt.Sprintf("AddToCart:%s:%s:%d", ref, productID, quantity))
	if f.addErr != nil {
		return nil, f.addErr
	}
	return f.addItem, nil
}

func (f *fakeCommerce) RemoveItem(_ context.Context, ref, itemID string) error {
	f.record("RemoveItem:" + ref + ":" + itemID)
	return f.removeErr
}

type sentMessage struct {
	chatID  int64
	text    string
	buttons [][]Button
}

type sentPhoto struct {
	chatID   int64
	photoURL string
	caption  string
	buttons  [][]Button
}

// fakeMessenger records outbound side effects.
type fakeMessenger struct {
	texts   []sentMessage
	photos  []sentPhoto
	deleted []int
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, text string, buttons [][]Button) error {
	f.texts = append(f.texts, sentMessage{chatID: chatID, text: text, buttons: buttons})
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, chatID int64, photoURL, caption string, buttons [][]Button) error {
	f.photos = append(f.photos, sentPhoto{chatID: chatID, photoURL: photoURL, caption: caption, buttons: buttons})
	return nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) lastText() sentMessage {
	if len(f.texts) == 0 {
		return sentMessage{}
	}
	return f.texts[len(f.texts)-1]
}
