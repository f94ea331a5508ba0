package shop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbot/commerce"
	"shopbot/session"
)

const testChatID int64 = 4242

func newTestMachine(api *fakeCommerce) (*Machine, *session.MemoryStore) {
	store := session.NewMemoryStore()
	return NewMachine(api, store), store
}

func liveProduct(id, name, price string) commerce.Product {
	return commerce.Product{
		ID:             id,
		Type:           "product",
		Name:           name,
		Description:    name + " description",
		Currency:       "USD",
		FormattedPrice: price,
	}
}

func TestStartRendersMenu(t *testing.T) {
	api := newFakeCommerce()
	api.products = []commerce.Product{
		liveProduct("p1", "Red Fish", "$5.00"),
		liveProduct("p2", "Blue Fish", "$7.00"),
		liveProduct("p3", "Green Fish", "$9.00"),
	}
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	res, err := m.Handle(context.Background(), msgr, StateStart, Event{ChatID: testChatID, Text: "/start", Start: true})
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.Next)

	require.Len(t, msgr.texts, 1)
	sent := msgr.texts[0]
	assert.Equal(t, testChatID, sent.chatID)
	assert.Equal(t, "Please choose:", sent.text)
	// Two products per row, remainder row, then the cart row.
	require.Len(t, sent.buttons, 3)
	assert.Equal(t, []Button{{Text: "Red Fish", Data: "p1"}, {Text: "Blue Fish", Data: "p2"}}, sent.buttons[0])
	assert.Equal(t, []Button{{Text: "Green Fish", Data: "p3"}}, sent.buttons[1])
	assert.Equal(t, []Button{{Text: "🛒 Cart", Data: payloadCart}}, sent.buttons[2])
}

func TestStartResetsFromAnyState(t *testing.T) {
	api := newFakeCommerce()
	m, _ := newTestMachine(api)

	for _, state := range []State{StateMenu, StateProduct, StateCart} {
		msgr := &fakeMessenger{}
		res, err := m.Handle(context.Background(), msgr, state, Event{ChatID: testChatID, Start: true})
		require.NoError(t, err, state)
		assert.Equal(t, StateMenu, res.Next, state)
	}
}

func TestMenuCartButtonShowsCart(t *testing.T) {
	api := newFakeCommerce()
	api.cart = &commerce.CartHeader{ID: chatKey(testChatID), FormattedPrice: "$12.00", Currency: "USD"}
	api.items = []commerce.CartItem{
		{ID: "item-1", Name: "Red Fish", Quantity: 2, FormattedUnitPrice: "$5.00", FormattedLinePrice: "$10.00"},
		{ID: "item-2", Name: "Blue Fish", Quantity: 1, FormattedUnitPrice: "$2.00", FormattedLinePrice: "$2.00"},
	}
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	res, err := m.Handle(context.Background(), msgr, StateMenu, Event{ChatID: testChatID, HasCallback: true, Payload: payloadCart})
	require.NoError(t, err)
	assert.Equal(t, StateCart, res.Next)

	sent := msgr.lastText()
	assert.Contains(t, sent.text, "Red Fish")
	assert.Contains(t, sent.text, "2 × $5.00 = $10.00")
	assert.Contains(t, sent.text, "Total: $12.00")
	// One remove row per item plus the menu row.
	require.Len(t, sent.buttons, 3)
	assert.Equal(t, "item-1", sent.buttons[0][0].Data)
	assert.Equal(t, "item-2", sent.buttons[1][0].Data)
	assert.Equal(t, payloadMenu, sent.buttons[2][0].Data)

	// Viewing the cart never mutates it.
	for _, call := range api.calls {
		assert.NotContains(t, call, "AddToCart")
		assert.NotContains(t, call, "RemoveItem")
	}
}

func TestMenuEmptyCart(t *testing.T) {
	api := newFakeCommerce()
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	res, err := m.Handle(context.Background(), msgr, StateMenu, Event{ChatID: testChatID, HasCallback: true, Payload: payloadCart})
	require.NoError(t, err)
	assert.Equal(t, StateCart, res.Next)
	assert.Equal(t, "Your cart is empty.", msgr.lastText().text)
}

func TestMenuProductSelectionShowsDetail(t *testing.T) {
	api := newFakeCommerce()
	p := liveProduct("p1", "Red Fish", "$5.00")
	p.MainImageID = "img-1"
	api.productBy["p1"] = &p
	api.files["img-1"] = &commerce.File{ID: "img-1", Link: "https://cdn.example.com/red-fish.jpg"}
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	res, err := m.Handle(context.Background(), msgr, StateMenu, Event{ChatID: testChatID, HasCallback: true, Payload: "p1"})
	require.NoError(t, err)
	assert.Equal(t, StateProduct, res.Next)

	require.Len(t, msgr.photos, 1)
	photo := msgr.photos[0]
	assert.Equal(t, "https://cdn.example.com/red-fish.jpg", photo.photoURL)
	assert.Contains(t, photo.caption, "Red Fish")
	assert.Contains(t, photo.caption, "$5.00")

	// Quantity row, cart row, menu row.
	require.Len(t, photo.buttons, 3)
	require.Len(t, photo.buttons[0], 3)
	sel, err := decodeAddSelection(photo.buttons[0][1].Data)
	require.NoError(t, err)
	assert.Equal(t, "p1", sel.ProductID)
	assert.Equal(t, 2, sel.Quantity)
}

func TestMenuProductWithoutImageFallsBackToText(t *testing.T) {
	api := newFakeCommerce()
	p := liveProduct("p1", "Red Fish", "$5.00")
	api.productBy["p1"] = &p
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	res, err := m.Handle(context.Background(), msgr, StateMenu, Event{ChatID: testChatID, HasCallback: true, Payload: "p1"})
	require.NoError(t, err)
	assert.Equal(t, StateProduct, res.Next)
	assert.Empty(t, msgr.photos)
	require.Len(t, msgr.texts, 1)
	assert.Contains(t, msgr.texts[0].text, "Red Fish")
}

func TestMenuProductWithoutPriceHidesQuantityRow(t *testing.T) {
	api := newFakeCommerce()
	p := liveProduct("p1", "Red Fish", "")
	api.productBy["p1"] = &p
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	res, err := m.Handle(context.Background(), msgr, StateMenu, Event{ChatID: testChatID, HasCallback: true, Payload: "p1"})
	require.NoError(t, err)
	assert.Equal(t, StateProduct, res.Next)

	sent := msgr.lastText()
	assert.Contains(t, sent.text, "Not yet orderable")
	// Only the cart and menu rows remain.
	require.Len(t, sent.buttons, 2)
	assert.Equal(t, payloadCart, sent.buttons[0][0].Data)
	assert.Equal(t, payloadMenu, sent.buttons[1][0].Data)
}

func TestMenuUnknownProductStaysOnMenu(t *testing.T) {
	api := newFakeCommerce()
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	res, err := m.Handle(context.Background(), msgr, StateMenu, Event{ChatID: testChatID, HasCallback: true, Payload: "gone"})
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.Next)
	assert.Contains(t, msgr.lastText().text, "not available right now")
}

func TestProductAddToCart(t *testing.T) {
	api := newFakeCommerce()
	api.addItem = &commerce.CartItem{ID: "item-1", ProductID: "p1", Name: "Red Fish", Quantity: 5}
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	payload := encodeAddSelection("p1", 5)
	res, err := m.Handle(context.Background(), msgr, StateProduct, Event{ChatID: testChatID, HasCallback: true, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.Next)

	assert.Contains(t, api.calls, "AddToCart:"+chatKey(testChatID)+":p1:5")
	assert.Contains(t, msgr.lastText().text, "Added Red Fish to your cart.")
}

func TestProductAddRejectedShowsInlineNote(t *testing.T) {
	api := newFakeCommerce()
	api.addErr = &commerce.APIError{
		StatusCode: 400,
		Title:      "Insufficient stock",
		Detail:     "only 2 units available",
	}
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	payload := encodeAddSelection("p1", 5)
	res, err := m.Handle(context.Background(), msgr, StateProduct, Event{ChatID: testChatID, HasCallback: true, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.Next)

	sent := msgr.lastText()
	assert.Contains(t, sent.text, "Insufficient stock: only 2 units available")
	assert.Contains(t, sent.text, "Please choose:")
}

func TestProductAddDuringOutageShowsRetryHint(t *testing.T) {
	api := newFakeCommerce()
	api.addErr = commerce.ErrUnavailable
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	payload := encodeAddSelection("p1", 1)
	res, err := m.Handle(context.Background(), msgr, StateProduct, Event{ChatID: testChatID, HasCallback: true, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.Next)
	assert.Contains(t, msgr.lastText().text, "temporarily unavailable")
}

func TestProductUnexpectedPayloadFails(t *testing.T) {
	api := newFakeCommerce()
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	_, err := m.Handle(context.Background(), msgr, StateProduct, Event{ChatID: testChatID, HasCallback: true, Payload: "p1"})
	assert.ErrorIs(t, err, ErrBadPayload)
	assert.Empty(t, msgr.texts)
}

func TestProductNavigation(t *testing.T) {
	api := newFakeCommerce()
	m, _ := newTestMachine(api)

	msgr := &fakeMessenger{}
	res, err := m.Handle(context.Background(), msgr, StateProduct, Event{ChatID: testChatID, HasCallback: true, Payload: payloadMenu})
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.Next)

	msgr = &fakeMessenger{}
	res, err = m.Handle(context.Background(), msgr, StateProduct, Event{ChatID: testChatID, HasCallback: true, Payload: payloadCart})
	require.NoError(t, err)
	assert.Equal(t, StateCart, res.Next)
}

func TestCartRemoveItem(t *testing.T) {
	api := newFakeCommerce()
	api.items = []commerce.CartItem{
		{ID: "item-2", Name: "Blue Fish", Quantity: 1, FormattedUnitPrice: "$2.00", FormattedLinePrice: "$2.00"},
	}
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	res, err := m.Handle(context.Background(), msgr, StateCart, Event{ChatID: testChatID, HasCallback: true, Payload: "item-1"})
	require.NoError(t, err)
	assert.Equal(t, StateCart, res.Next)
	assert.Contains(t, api.calls, "RemoveItem:"+chatKey(testChatID)+":item-1")
	assert.Contains(t, msgr.lastText().text, "Blue Fish")
}

func TestCartDoubleRemovePropagatesError(t *testing.T) {
	api := newFakeCommerce()
	api.removeErr = &commerce.APIError{StatusCode: 404, Title: "Not Found"}
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	_, err := m.Handle(context.Background(), msgr, StateCart, Event{ChatID: testChatID, HasCallback: true, Payload: "item-1"})
	var apiErr *commerce.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Empty(t, msgr.texts)
}

func TestStrayTextRecovery(t *testing.T) {
	api := newFakeCommerce()
	m, store := newTestMachine(api)
	require.NoError(t, store.Set(context.Background(), chatKey(testChatID), string(StateProduct)))
	msgr := &fakeMessenger{}

	res, err := m.Handle(context.Background(), msgr, StateMenu, Event{ChatID: testChatID, MessageID: 77, Text: "hello?"})
	require.NoError(t, err)
	// The persisted state wins over the one loaded for this event.
	assert.Equal(t, StateProduct, res.Next)
	assert.Equal(t, []int{77}, msgr.deleted)
	assert.Empty(t, msgr.texts)
	assert.Empty(t, api.calls, "stray recovery must not call the commerce API")
}

func TestStrayTextWithoutPersistedState(t *testing.T) {
	api := newFakeCommerce()
	m, _ := newTestMachine(api)
	msgr := &fakeMessenger{}

	res, err := m.Handle(context.Background(), msgr, StateCart, Event{ChatID: testChatID, MessageID: 78, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, StateStart, res.Next)
	assert.Empty(t, api.calls)
}
