package notify

import (
	"context"
	"log"
	"time"
)

// Dispatcher sends session-aware, debounced client notifications through the
// external provider with bounded retry. It is always invoked after the state
// change it announces has committed; its failures are advisory and never
// propagate into the transaction path.
type Dispatcher struct {
	provider           Provider
	gate               Locker
	registry           TemplateRegistry
	defaultCountryCode string
	maxRetries         int
	backoffBase        time.Duration
}

// NewDispatcher wires a dispatcher from its collaborators.
func NewDispatcher(provider Provider, gate Locker, registry TemplateRegistry, defaultCountryCode string, maxRetries int, backoffBase time.Duration) *Dispatcher {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Dispatcher{
		provider:           provider,
		gate:               gate,
		registry:           registry,
		defaultCountryCode: defaultCountryCode,
		maxRetries:         maxRetries,
		backoffBase:        backoffBase,
	}
}

// Send delivers one notification. Returns (true, nil) on a successful send
// and (false, nil) when the attempt was debounced; a debounced skip is not
// an error. Recipients inside the session window get the free-form body,
// everyone else gets the provider template for the action with vars bound.
//
// The debounce lock is claimed atomically before the first provider attempt
// so concurrent callers cannot both send; it is released again if delivery
// fails terminally, leaving the window to cover successful sends only.
func (d *Dispatcher) Send(ctx context.Context, recipient string, action Action, body string, vars map[string]string) (bool, error) {
	normalized, err := NormalizeRecipient(recipient, d.defaultCountryCode)
	if err != nil {
		return false, err
	}

	acquired, err := d.gate.AcquireDebounce(ctx, normalized, ChannelWhatsApp, action)
	if err != nil {
		return false, err
	}
	if !acquired {
		log.Printf("Notification to %s for %s debounced.", normalized, action)
		return false, nil
	}

	inSession, err := d.gate.WithinSessionWindow(ctx, normalized)
	if err != nil {
		// Can't tell; the conservative choice on a restricted channel is the
		// pre-approved template.
		log.Printf("WARN: session window lookup for %s failed, assuming no session: %v", normalized, err)
		inSession = false
	}

	var tpl Template
	if !inSession {
		tpl, err = d.registry.Resolve(action, vars)
		if err != nil {
			d.gate.ReleaseDebounce(ctx, normalized, ChannelWhatsApp, action)
			return false, err
		}
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		attempts++
		if inSession {
			_, lastErr = d.provider.SendFreeform(ctx, normalized, body)
		} else {
			_, lastErr = d.provider.SendTemplate(ctx, normalized, tpl.ID, vars)
		}
		if lastErr == nil {
			if touchErr := d.gate.TouchSession(ctx, normalized); touchErr != nil {
				log.Printf("WARN: failed to record interaction for %s: %v", normalized, touchErr)
			}
			return true, nil
		}
		if !IsTransient(lastErr) || attempt == d.maxRetries {
			break
		}
		if err := sleepCtx(ctx, d.backoffBase*time.Duration(1<<attempt)); err != nil {
			lastErr = err
			break
		}
	}

	d.gate.ReleaseDebounce(ctx, normalized, ChannelWhatsApp, action)
	return false, &DeliveryError{Recipient: normalized, Attempts: attempts, Err: lastErr}
}

// sleepCtx waits for the duration or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
