// Package alertengine implements the alert engine (spec §4.4, C4): on
// each price:update, detect edge-crossings of per-loan price and LTV
// thresholds and dispatch notifications with at-most-once semantics.
package alertengine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"loanwatch.io/pkg/loan"
	"loanwatch.io/pkg/notify"
	"loanwatch.io/pkg/price"
	"loanwatch.io/pkg/sysevent"
)

// Publisher is the bus method the engine needs to emit ALERT_TRIGGERED.
type Publisher interface {
	PublishSystemEvent(evt sysevent.Event)
}

// Claimer guards against a trigger firing twice under concurrent
// delivery or a lost triggered-flag write; *loan.RedisCache satisfies
// this. Optional: a nil Claimer relies solely on the store's triggered
// flag.
type Claimer interface {
	ClaimTrigger(ctx context.Context, alertID string) (bool, error)
}

// Engine is the alert engine described in spec §4.4. All state mutation
// happens from OnPriceUpdate, which the bus calls synchronously and
// in order, so a single mutex protects previousPrice and
// previousLTVByToken.
type Engine struct {
	store   loan.Store
	sender  notify.Sender
	pub     Publisher
	claimer Claimer
	now     func() time.Time

	mu                 sync.Mutex
	previousPrice      float64
	previousLTVByToken map[string]float64
}

// New builds an engine. claimer may be nil.
func New(store loan.Store, sender notify.Sender, pub Publisher, claimer Claimer) *Engine {
	return &Engine{
		store:              store,
		sender:             sender,
		pub:                pub,
		claimer:            claimer,
		now:                time.Now,
		previousLTVByToken: make(map[string]float64),
	}
}

// OnPriceUpdate is the bus.PriceHandler the engine registers with
// bus.OnPriceUpdate. previousPrice is updated only after both sweeps
// complete (spec §4.4).
func (e *Engine) OnPriceUpdate(update price.Update) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prevPrice := e.previousPrice
	curr := update.Price
	nowMs := e.now().UnixMilli()

	e.sweepPriceAlerts(prevPrice, curr, nowMs)
	e.sweepLTVAlerts(curr, nowMs)

	e.previousPrice = curr
}

func (e *Engine) sweepPriceAlerts(prevPrice, currPrice float64, nowMs int64) {
	for _, a := range e.store.GetAllPriceAlerts() {
		if a.Triggered {
			continue
		}
		if !crosses(prevPrice, currPrice, a.Threshold, a.Direction) {
			continue
		}
		if !e.claim(a.AlertID) {
			continue
		}

		l, _ := e.store.GetLoan(a.Token)
		text := fmt.Sprintf("BTC price %s $%.2f (threshold $%.2f, now $%.2f)",
			directionVerb(a.Direction), a.Threshold, a.Threshold, currPrice)
		e.fire(func() error { return e.store.MarkPriceAlertTriggered(a.AlertID, nowMs) },
			l.ChatID, text, sysevent.AlertTriggeredPayload{
				Kind: sysevent.AlertKindPrice, AlertID: a.AlertID, Token: a.Token,
				Value: currPrice, Threshold: a.Threshold,
			})
	}
}

func (e *Engine) sweepLTVAlerts(currPrice float64, nowMs int64) {
	for _, a := range e.store.GetAllLtvAlerts() {
		if a.Triggered {
			continue
		}
		l, ok := e.store.GetLoan(a.Token)
		if !ok || l.BTCCollateral*currPrice <= 0 {
			continue
		}
		currLTV := loan.LTV(l, currPrice)
		prevLTV := e.previousLTVByToken[a.Token]
		if !crosses(prevLTV, currLTV, a.LTVThreshold, a.Direction) {
			continue
		}
		if !e.claim(a.AlertID) {
			continue
		}

		text := fmt.Sprintf("loan %s LTV %s %.0f%% (now %.1f%%)",
			shortToken(a.Token), directionVerb(a.Direction), a.LTVThreshold*100, currLTV*100)
		e.fire(func() error { return e.store.MarkLtvAlertTriggered(a.AlertID, nowMs) },
			l.ChatID, text, sysevent.AlertTriggeredPayload{
				Kind: sysevent.AlertKindLTV, AlertID: a.AlertID, Token: a.Token,
				Value: currLTV, Threshold: a.LTVThreshold,
			})
	}

	// Refresh previous LTV for every loan, not merely alerted ones, so a
	// newly created alert has a valid prev on the next tick (spec §4.4).
	for _, l := range e.store.GetAllLoans() {
		if l.BTCCollateral*currPrice <= 0 {
			continue
		}
		e.previousLTVByToken[l.Token] = loan.LTV(l, currPrice)
	}
}

// claim reports whether alertID is still free to fire. With no Claimer
// configured every not-yet-triggered alert is free; sweepPriceAlerts /
// sweepLTVAlerts hold the store's triggered flag as the final word.
func (e *Engine) claim(alertID string) bool {
	if e.claimer == nil {
		return true
	}
	ok, err := e.claimer.ClaimTrigger(context.Background(), alertID)
	if err != nil {
		log.Printf("[alertengine] claim %s: %v (proceeding on store state alone)", alertID, err)
		return true
	}
	return ok
}

// fire marks the alert triggered, then notifies, then publishes the
// system event, in that order: marking before sending means a
// notification is never sent twice for one alert, at the cost of a
// notification that is lost if the process crashes between mark and
// send (spec §9).
func (e *Engine) fire(mark func() error, chatID int64, text string, payload sysevent.AlertTriggeredPayload) {
	if err := mark(); err != nil {
		log.Printf("[alertengine] mark triggered for %s failed: %v", payload.AlertID, err)
		return
	}
	if err := e.sender.Notify(chatID, text); err != nil {
		log.Printf("[alertengine] notify chat=%d failed: %v", chatID, err)
	}
	if e.pub != nil {
		e.pub.PublishSystemEvent(sysevent.Event{Type: sysevent.AlertTriggered, Payload: payload})
	}
}

// crosses implements the shared price/LTV edge-detection rule from
// spec §4.4: prev=0 is treated as an open boundary so an alert created
// after the world has already crossed its threshold fires once on the
// next observation.
func crosses(prev, curr, threshold float64, dir loan.Direction) bool {
	switch dir {
	case loan.Below:
		if prev > 0 {
			return prev >= threshold && curr < threshold
		}
		return curr < threshold
	case loan.Above:
		if prev > 0 {
			return prev <= threshold && curr > threshold
		}
		return curr > threshold
	default:
		return false
	}
}

func directionVerb(dir loan.Direction) string {
	if dir == loan.Above {
		return "rose above"
	}
	return "fell below"
}

func shortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
