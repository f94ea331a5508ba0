package shop

import (
	"context"
	"log/slog"

	"shopbot/core/logger"
	"shopbot/session"
)

// Dispatcher is the thin orchestration layer: it loads the persisted state
// for the event's chat, invokes the machine, and persists the returned next
// state. No business rules live here.
type Dispatcher struct {
	store   session.Store
	machine *Machine
}

// NewDispatcher wires the dispatcher to its store and machine.
func NewDispatcher(store session.Store, machine *Machine) *Dispatcher {
	return &Dispatcher{store: store, machine: machine}
}

// Dispatch runs one conversation transition. Any handler error is logged
// here and the previously persisted state is left intact: the user sees no
// response rather than an inconsistent transition. The load-compute-persist
// cycle is not transactional; duplicate deliveries for the same chat can
// race (accepted store-contract limitation).
func (d *Dispatcher) Dispatch(ctx context.Context, msgr Messenger, ev Event) error {
	key := chatKey(ev.ChatID)

	state := StateStart
	if !ev.Start {
		raw, ok, err := d.store.Get(ctx, key)
		if err != nil {
			logger.Error(ctx, "shop", "state.load.fail",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			return err
		}
		if ok {
			parsed, valid := ParseState(raw)
			if !valid {
				logger.Warn(ctx, "shop", "state.unknown",
					slog.String("label", logger.SanitizeLimit(raw, 64)),
				)
			}
			state = parsed
		}
	}

	result, err := d.machine.Handle(ctx, msgr, state, ev)
	if err != nil {
		logger.Error(ctx, "shop", "transition.fail",
			slog.String("status", "fail"),
			slog.String("state", string(state)),
			slog.String("err", err.Error()),
		)
		return err
	}

	if err := d.store.Set(ctx, key, string(result.Next)); err != nil {
		logger.Error(ctx, "shop", "state.save.fail",
			slog.String("status", "fail"),
			slog.String("state", string(result.Next)),
			slog.String("err", err.Error()),
		)
		return err
	}

	logger.Debug(ctx, "shop", "transition",
		slog.String("status", "ok"),
		slog.String("state", string(state)),
		slog.String("next", string(result.Next)),
	)
	return nil
}
