package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shopbot/commerce"
	"shopbot/core/logger"
	"shopbot/session"
)

// Result is a handler outcome: the state to persist. Handlers return it with
// a nil error only when their side effects completed; on error the dispatcher
// leaves the previously persisted state intact.
type Result struct {
	Next State
}

// Machine executes one conversation transition per inbound event. It holds
// no per-chat state of its own: the current step comes in with the call and
// the cart lives upstream, keyed by the same chat id.
type Machine struct {
	api   Commerce
	store session.Store
}

// NewMachine wires the state machine to its collaborators. The store is used
// only by stray-input recovery, which re-reads the persisted label.
func NewMachine(api Commerce, store session.Store) *Machine {
	return &Machine{api: api, store: store}
}

// Handle runs the transition for the given state and event. The /start
// command resets the conversation from any state.
func (m *Machine) Handle(ctx context.Context, msgr Messenger, state State, ev Event) (Result, error) {
	if ev.Start {
		return m.handleStart(ctx, msgr, ev)
	}
	switch state {
	case StateStart:
		return m.handleStart(ctx, msgr, ev)
	case StateMenu:
		return m.handleMenu(ctx, msgr, ev)
	case StateProduct:
		return m.handleProduct(ctx, msgr, ev)
	case StateCart:
		return m.handleCart(ctx, msgr, ev)
	}
	// Unreachable for labels that passed ParseState.
	return m.handleStart(ctx, msgr, ev)
}

func (m *Machine) handleStart(ctx context.Context, msgr Messenger, ev Event) (Result, error) {
	if err := m.renderMenu(ctx, msgr, ev.ChatID, ""); err != nil {
		return Result{}, err
	}
	return Result{Next: StateMenu}, nil
}

func (m *Machine) handleMenu(ctx context.Context, msgr Messenger, ev Event) (Result, error) {
	if !ev.HasCallback {
		return m.recoverStray(ctx, msgr, ev)
	}
	if ev.Payload == payloadCart {
		if err := m.renderCart(ctx, msgr, ev.ChatID); err != nil {
			return Result{}, err
		}
		return Result{Next: StateCart}, nil
	}

	product, err := m.api.GetProduct(ctx, ev.Payload)
	if err != nil {
		return Result{}, err
	}
	if product == nil {
		// Stale menu entry or a product pulled from live status.
		if err := m.renderMenu(ctx, msgr, ev.ChatID, "That product is not available right now."); err != nil {
			return Result{}, err
		}
		return Result{Next: StateMenu}, nil
	}
	if err := m.renderProduct(ctx, msgr, ev.ChatID, product); err != nil {
		return Result{}, err
	}
	return Result{Next: StateProduct}, nil
}

func (m *Machine) handleProduct(ctx context.Context, msgr Messenger, ev Event) (Result, error) {
	if !ev.HasCallback {
		return m.recoverStray(ctx, msgr, ev)
	}
	switch {
	case ev.Payload == payloadMenu:
		if err := m.renderMenu(ctx, msgr, ev.ChatID, ""); err != nil {
			return Result{}, err
		}
		return Result{Next: StateMenu}, nil
	case ev.Payload == payloadCart:
		if err := m.renderCart(ctx, msgr, ev.ChatID); err != nil {
			return Result{}, err
		}
		return Result{Next: StateCart}, nil
	case isAddSelection(ev.Payload):
		return m.addToCart(ctx, msgr, ev)
	}
	return Result{}, fmt.Errorf("%w: unexpected payload on product view", ErrBadPayload)
}

// addToCart performs the add-to-cart mutation. An upstream rejection or a
// transient outage is shown inline on the menu view instead of aborting the
// transition; everything else propagates to the dispatch boundary.
func (m *Machine) addToCart(ctx context.Context, msgr Messenger, ev Event) (Result, error) {
	sel, err := decodeAddSelection(ev.Payload)
	if err != nil {
		return Result{}, err
	}

	item, err := m.api.AddToCart(ctx, chatKey(ev.ChatID), sel.ProductID, sel.Quantity)
	if err != nil {
		note, ok := userFacingNote(err)
		if !ok {
			return Result{}, err
		}
		logger.Warn(ctx, "shop", "cart.add.rejected",
			slog.String("product_id", sel.ProductID),
			slog.Int("quantity", sel.Quantity),
			slog.String("err", err.Error()),
		)
		if err := m.renderMenu(ctx, msgr, ev.ChatID, note); err != nil {
			return Result{}, err
		}
		return Result{Next: StateMenu}, nil
	}

	note := "Added " + item.Name + " to your cart."
	if err := m.renderMenu(ctx, msgr, ev.ChatID, note); err != nil {
		return Result{}, err
	}
	return Result{Next: StateMenu}, nil
}

func (m *Machine) handleCart(ctx context.Context, msgr Messenger, ev Event) (Result, error) {
	if !ev.HasCallback {
		return m.recoverStray(ctx, msgr, ev)
	}
	if ev.Payload == payloadMenu {
		if err := m.renderMenu(ctx, msgr, ev.ChatID, ""); err != nil {
			return Result{}, err
		}
		return Result{Next: StateMenu}, nil
	}

	// Any other payload is a line-item id. An upstream "not found" (e.g. a
	// double press on the same remove button) propagates as ApiError and
	// leaves the persisted state at CART.
	if err := m.api.RemoveItem(ctx, chatKey(ev.ChatID), ev.Payload); err != nil {
		return Result{}, err
	}
	if err := m.renderCart(ctx, msgr, ev.ChatID); err != nil {
		return Result{}, err
	}
	return Result{Next: StateCart}, nil
}

// recoverStray handles free text arriving in a callback-only state: delete
// the stray message, re-read the persisted state, and re-enter it unchanged.
// No commerce calls are made. The re-read (instead of reusing the label
// loaded for this event) is deliberate: with a shared store another process
// may have advanced the conversation in the meantime.
func (m *Machine) recoverStray(ctx context.Context, msgr Messenger, ev Event) (Result, error) {
	if ev.MessageID != 0 {
		if err := msgr.DeleteMessage(ctx, ev.ChatID, ev.MessageID); err != nil {
			logger.Debug(ctx, "shop", "recover.delete.fail",
				slog.Int("message_id", ev.MessageID),
				slog.String("err", err.Error()),
			)
		}
	}

	raw, ok, err := m.store.Get(ctx, chatKey(ev.ChatID))
	if err != nil {
		return Result{}, err
	}
	state := StateStart
	if ok {
		if parsed, valid := ParseState(raw); valid {
			state = parsed
		}
	}
	logger.Debug(ctx, "shop", "recover.stray",
		slog.String("state", string(state)),
	)
	return Result{Next: state}, nil
}

// userFacingNote maps commerce failures that should be shown inline to the
// user. Upstream rejections carry their own title/detail; transient outages
// get a generic retry hint. Contract violations stay internal.
func userFacingNote(err error) (string, bool) {
	var apiErr *commerce.APIError
	if errors.As(err, &apiErr) {
		note := apiErr.Title
		if apiErr.Detail != "" {
			note += ": " + apiErr.Detail
		}
		return note, true
	}
	if errors.Is(err, commerce.ErrUnavailable) {
		return "The store is temporarily unavailable, please try again later.", true
	}
	return "", false
}
