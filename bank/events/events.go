// Package events publishes bank domain events to subscribed observers.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
)

type Type string

const (
	AccountOpened        Type = "account.opened"
	TransactionCompleted Type = "transaction.completed"
	TransactionFailed    Type = "transaction.failed"
	TransactionReversed  Type = "transaction.reversed"
	LoanDecided          Type = "loan.decided"
)

type Event struct {
	ID          string                  `json:"id"`
	Type        Type                    `json:"type"`
	OccurredAt  time.Time               `json:"occurred_at"`
	Account     *models.Account         `json:"account,omitempty"`
	Transaction *models.Transaction     `json:"transaction,omitempty"`
	Loan        *models.LoanApplication `json:"loan,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

// New returns an event of type t stamped with a fresh id and time.
func New(t Type) Event {
	return Event{ID: uuid.New().String(), Type: t, OccurredAt: time.Now().UTC()}
}

// Observer receives published events.
type Observer interface {
	Notify(ctx context.Context, e Event) error
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(ctx context.Context, e Event) error

func (f ObserverFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

type subscription struct {
	id       uint64
	name     string
	observer Observer
}

// Publisher fans events out to observers in subscription order.
type Publisher struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers o under name and returns a function removing it again.
func (p *Publisher) Subscribe(name string, o Observer) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.subs = append(p.subs, subscription{id: id, name: name, observer: o})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the names of the current observers.
func (p *Publisher) Subscribers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.subs))
	for _, s := range p.subs {
		names = append(names, s.name)
	}
	return names
}

// Publish delivers e to every observer. A failing observer does not stop delivery
// to the others; all failures are combined in the returned error.
func (p *Publisher) Publish(ctx context.Context, e Event) error {
	p.mu.RLock()
	subs := make([]subscription, len(p.subs))
	copy(subs, p.subs)
	p.mu.RUnlock()

	var err error
	for _, s := range subs {
		if nerr := s.observer.Notify(ctx, e); nerr != nil {
			err = multierr.Append(err, fmt.Errorf("observer %s: %w", s.name, nerr))
		}
	}
	return err
}
