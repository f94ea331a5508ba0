package shop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbot/commerce"
	"shopbot/session"
)

func newTestDispatcher(api *fakeCommerce) (*Dispatcher, *session.MemoryStore) {
	store := session.NewMemoryStore()
	return NewDispatcher(store, NewMachine(api, store)), store
}

func persistedState(t *testing.T, store session.Store, chatID int64) string {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), chatKey(chatID))
	require.NoError(t, err)
	require.True(t, ok, "no state persisted for chat %d", chatID)
	return raw
}

func TestDispatchPersistsNextState(t *testing.T) {
	api := newFakeCommerce()
	d, store := newTestDispatcher(api)
	msgr := &fakeMessenger{}

	err := d.Dispatch(context.Background(), msgr, Event{ChatID: testChatID, Text: "/start", Start: true})
	require.NoError(t, err)
	assert.Equal(t, string(StateMenu), persistedState(t, store, testChatID))
}

func TestDispatchKeepsPriorStateOnError(t *testing.T) {
	api := newFakeCommerce()
	api.removeErr = &commerce.APIError{StatusCode: 404, Title: "Not Found"}
	d, store := newTestDispatcher(api)
	require.NoError(t, store.Set(context.Background(), chatKey(testChatID), string(StateCart)))
	msgr := &fakeMessenger{}

	err := d.Dispatch(context.Background(), msgr, Event{ChatID: testChatID, HasCallback: true, Payload: "item-1"})
	var apiErr *commerce.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, string(StateCart), persistedState(t, store, testChatID))
}

func TestDispatchStartOverridesPersistedState(t *testing.T) {
	api := newFakeCommerce()
	d, store := newTestDispatcher(api)
	require.NoError(t, store.Set(context.Background(), chatKey(testChatID), string(StateCart)))
	msgr := &fakeMessenger{}

	err := d.Dispatch(context.Background(), msgr, Event{ChatID: testChatID, Text: "/start", Start: true})
	require.NoError(t, err)
	assert.Equal(t, string(StateMenu), persistedState(t, store, testChatID))
	// The start path never reads the store.
	require.Len(t, msgr.texts, 1)
}

func TestDispatchUnknownLabelFallsBackToStart(t *testing.T) {
	api := newFakeCommerce()
	d, store := newTestDispatcher(api)
	require.NoError(t, store.Set(context.Background(), chatKey(testChatID), "CHECKOUT"))
	msgr := &fakeMessenger{}

	err := d.Dispatch(context.Background(), msgr, Event{ChatID: testChatID, HasCallback: true, Payload: payloadCart})
	require.NoError(t, err)
	// Falling back to the start state renders the menu regardless of payload.
	assert.Equal(t, string(StateMenu), persistedState(t, store, testChatID))
	assert.Equal(t, "Please choose:", msgr.lastText().text)
}

func TestDispatchStraySequence(t *testing.T) {
	api := newFakeCommerce()
	p := liveProduct("p1", "Red Fish", "$5.00")
	api.products = []commerce.Product{p}
	api.productBy["p1"] = &p
	d, store := newTestDispatcher(api)
	msgr := &fakeMessenger{}

	ctx := context.Background()
	require.NoError(t, d.Dispatch(ctx, msgr, Event{ChatID: testChatID, Text: "/start", Start: true}))
	require.NoError(t, d.Dispatch(ctx, msgr, Event{ChatID: testChatID, HasCallback: true, Payload: "p1"}))
	assert.Equal(t, string(StateProduct), persistedState(t, store, testChatID))

	// A stray typed message on the product view leaves the state untouched.
	require.NoError(t, d.Dispatch(ctx, msgr, Event{ChatID: testChatID, MessageID: 99, Text: "what?"}))
	assert.Equal(t, string(StateProduct), persistedState(t, store, testChatID))
	assert.Equal(t, []int{99}, msgr.deleted)
}
