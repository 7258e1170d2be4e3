package alertengine

import (
	"testing"

	"loanwatch.io/pkg/loan"
	"loanwatch.io/pkg/price"
	"loanwatch.io/pkg/sysevent"
)

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Notify(chatID int64, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type fakePublisher struct {
	events []sysevent.Event
}

func (f *fakePublisher) PublishSystemEvent(evt sysevent.Event) { f.events = append(f.events, evt) }

func deliver(e *Engine, p float64) {
	e.OnPriceUpdate(price.Update{Price: p})
}

// S2: price crossing BELOW fires exactly once, on the 58000 tick.
func TestS2PriceCrossingBelow(t *testing.T) {
	store := loan.NewMemoryStore()
	store.PutPriceAlert(loan.PriceAlert{AlertID: "a1", Threshold: 60000, Direction: loan.Below})
	sender := &fakeSender{}
	e := New(store, sender, &fakePublisher{}, nil)

	deliver(e, 70000)
	deliver(e, 65000)
	deliver(e, 58000)
	deliver(e, 55000)

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d: %v", len(sender.sent), sender.sent)
	}
	alerts := store.GetAllPriceAlerts()
	if !alerts[0].Triggered {
		t.Errorf("expected alert marked triggered")
	}
}

// S3: a second ABOVE alert fires independently; the first stays untouched.
func TestS3PriceCrossingAboveAfterPriorTrigger(t *testing.T) {
	store := loan.NewMemoryStore()
	store.PutPriceAlert(loan.PriceAlert{AlertID: "a1", Threshold: 60000, Direction: loan.Below})
	sender := &fakeSender{}
	e := New(store, sender, &fakePublisher{}, nil)

	deliver(e, 70000)
	deliver(e, 65000)
	deliver(e, 58000) // a1 fires here
	deliver(e, 55000)

	store.PutPriceAlert(loan.PriceAlert{AlertID: "a2", Threshold: 80000, Direction: loan.Above})
	deliver(e, 75000)
	deliver(e, 82000) // a2 fires here

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 total notifications, got %d", len(sender.sent))
	}

	var a1, a2 loan.PriceAlert
	for _, a := range store.GetAllPriceAlerts() {
		switch a.AlertID {
		case "a1":
			a1 = a
		case "a2":
			a2 = a
		}
	}
	if !a1.Triggered || !a2.Triggered {
		t.Fatalf("expected both alerts triggered: a1=%v a2=%v", a1.Triggered, a2.Triggered)
	}
}

// S4: LTV crossing ABOVE fires exactly once, on the 65000 tick.
func TestS4LTVCrossing(t *testing.T) {
	store := loan.NewMemoryStore()
	l := loan.Loan{Token: "tok1", LoanAmountUSD: 50000, BTCCollateral: 1.0, MarginCallLTV: 0.75, LiquidationLTV: 0.90}
	store.PutLoan(l)
	store.PutLtvAlert(loan.LtvAlert{AlertID: "la1", Token: "tok1", LTVThreshold: 0.70, Direction: loan.Above})
	sender := &fakeSender{}
	e := New(store, sender, &fakePublisher{}, nil)

	deliver(e, 100000) // ltv 0.50
	deliver(e, 80000)  // ltv 0.625
	deliver(e, 65000)  // ltv ~0.769 -> crosses 0.70

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d: %v", len(sender.sent), sender.sent)
	}
}

// Invariant 5: a triggered alert never fires twice regardless of
// subsequent trajectory.
func TestTriggeredAlertNeverFiresAgain(t *testing.T) {
	store := loan.NewMemoryStore()
	store.PutPriceAlert(loan.PriceAlert{AlertID: "a1", Threshold: 60000, Direction: loan.Below})
	sender := &fakeSender{}
	e := New(store, sender, &fakePublisher{}, nil)

	deliver(e, 70000)
	deliver(e, 50000) // fires
	deliver(e, 70000) // back above threshold
	deliver(e, 40000) // crosses below again -- should not re-fire, already triggered

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly 1 notification across the whole trajectory, got %d", len(sender.sent))
	}
}

// The prev=0 rule: an alert created while the world is already past its
// threshold fires on the very first observation.
func TestAlreadyPastThresholdFiresOnFirstTick(t *testing.T) {
	store := loan.NewMemoryStore()
	store.PutPriceAlert(loan.PriceAlert{AlertID: "a1", Threshold: 60000, Direction: loan.Below})
	sender := &fakeSender{}
	e := New(store, sender, &fakePublisher{}, nil)

	deliver(e, 50000) // first ever update, already below threshold

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 notification on first observation, got %d", len(sender.sent))
	}
}

func TestAlertTriggeredEventPublished(t *testing.T) {
	store := loan.NewMemoryStore()
	store.PutPriceAlert(loan.PriceAlert{AlertID: "a1", Threshold: 60000, Direction: loan.Below})
	pub := &fakePublisher{}
	e := New(store, &fakeSender{}, pub, nil)

	deliver(e, 70000)
	deliver(e, 50000)

	if len(pub.events) != 1 || pub.events[0].Type != sysevent.AlertTriggered {
		t.Fatalf("expected 1 ALERT_TRIGGERED event, got %+v", pub.events)
	}
}
