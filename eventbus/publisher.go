// Package eventbus publishes ledger events to a RabbitMQ queue.
//
// Publisher is a ledger plugin. Every committed ledger change becomes one
// persistent JSON message on a durable queue, so downstream consumers
// (emails, analytics, CRM sync) never touch the account store.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// DefaultQueue is the queue events are routed to.
const DefaultQueue = "credits.events"

// Event types.
const (
	EventAccountCreated       = "account.created"
	EventAccountDeleted       = "account.deleted"
	EventPlanChanged          = "account.plan_changed"
	EventCreditsDebited       = "credits.debited"
	EventDebitDenied          = "credits.debit_denied"
	EventCreditsGranted       = "credits.granted"
	EventMonthlyReset         = "credits.monthly_reset"
	EventTemplateCreditsAdded = "credits.template_added"
	EventPaymentCompleted     = "payment.completed"
	EventPaymentFailed        = "payment.failed"
)

// Event is the message body.
type Event struct {
	ID        id.ID        `json:"id"`
	Type      string       `json:"type"`
	UID       string       `json:"uid"`
	Timestamp types.Millis `json:"timestamp"`

	Amount      int64        `json:"amount,omitempty"`
	Balance     *int64       `json:"balance,omitempty"`
	Kind        string       `json:"kind,omitempty"`
	Description string       `json:"description,omitempty"`
	Transaction string       `json:"transactionId,omitempty"`
	Plan        string       `json:"plan,omitempty"`
	PaymentID   string       `json:"paymentId,omitempty"`
	Price       *types.Money `json:"price,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Publisher)(nil)
	_ plugin.OnShutdown             = (*Publisher)(nil)
	_ plugin.OnAccountCreated       = (*Publisher)(nil)
	_ plugin.OnAccountDeleted       = (*Publisher)(nil)
	_ plugin.OnPlanChanged          = (*Publisher)(nil)
	_ plugin.OnCreditsDebited       = (*Publisher)(nil)
	_ plugin.OnDebitDenied          = (*Publisher)(nil)
	_ plugin.OnCreditsGranted       = (*Publisher)(nil)
	_ plugin.OnMonthlyReset         = (*Publisher)(nil)
	_ plugin.OnTemplateCreditsAdded = (*Publisher)(nil)
	_ plugin.OnPaymentCompleted     = (*Publisher)(nil)
	_ plugin.OnPaymentFailed        = (*Publisher)(nil)
)

// Publisher publishes ledger events.
type Publisher struct {
	ch     Channel
	conn   *amqp.Connection
	queue  string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithQueue overrides DefaultQueue.
func WithQueue(name string) Option {
	return func(p *Publisher) { p.queue = name }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithClock sets the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// Dial connects to the broker at url and returns a Publisher owning the
// connection.
func Dial(url string, opts ...Option) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close() //nolint:errcheck // best-effort
		return nil, fmt.Errorf("eventbus: open channel: %w", err)
	}
	p, err := New(ch, opts...)
	if err != nil {
		conn.Close() //nolint:errcheck // best-effort
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// New declares the durable queue on ch and returns a Publisher.
func New(ch Channel, opts ...Option) (*Publisher, error) {
	p := &Publisher{
		ch:     ch,
		queue:  DefaultQueue,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	_, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("eventbus: declare queue %s: %w", p.queue, err)
	}
	return p, nil
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "eventbus" }

// Publish sends one event. ID and Timestamp are filled in when unset.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if ev.ID.IsNil() {
		ev.ID = id.NewEventID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = types.MillisOf(p.now())
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventbus: encode %s: %w", ev.Type, err)
	}

	err = p.ch.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID.String(),
			Timestamp:    ev.Timestamp.Time(),
			Type:         ev.Type,
			Body:         body,
		})
	if err != nil {
		p.logger.Warn("event publish failed", "type", ev.Type, "uid", ev.UID, "error", err)
		return fmt.Errorf("eventbus: publish %s: %w", ev.Type, err)
	}
	return nil
}

// OnShutdown closes the channel and, when owned, the connection.
func (p *Publisher) OnShutdown(_ context.Context) error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

func (p *Publisher) OnAccountCreated(ctx context.Context, acct *account.Account) error {
	return p.Publish(ctx, Event{
		Type:    EventAccountCreated,
		UID:     acct.UID,
		Balance: ptr(acct.Credits),
		Plan:    string(acct.Plan),
	})
}

func (p *Publisher) OnAccountDeleted(ctx context.Context, uid string) error {
	return p.Publish(ctx, Event{Type: EventAccountDeleted, UID: uid})
}

func (p *Publisher) OnPlanChanged(ctx context.Context, uid string, pl plan.Plan) error {
	return p.Publish(ctx, Event{Type: EventPlanChanged, UID: uid, Plan: string(pl)})
}

func (p *Publisher) OnCreditsDebited(ctx context.Context, uid string, tx transaction.Transaction, balance int64) error {
	return p.Publish(ctx, txEvent(EventCreditsDebited, uid, tx, balance))
}

func (p *Publisher) OnDebitDenied(ctx context.Context, uid string, required, balance int64) error {
	return p.Publish(ctx, Event{
		Type:    EventDebitDenied,
		UID:     uid,
		Amount:  required,
		Balance: ptr(balance),
	})
}

func (p *Publisher) OnCreditsGranted(ctx context.Context, uid string, tx transaction.Transaction, balance int64) error {
	return p.Publish(ctx, txEvent(EventCreditsGranted, uid, tx, balance))
}

func (p *Publisher) OnMonthlyReset(ctx context.Context, uid string, tx transaction.Transaction, balanceBefore int64) error {
	return p.Publish(ctx, txEvent(EventMonthlyReset, uid, tx, balanceBefore+tx.Amount))
}

func (p *Publisher) OnTemplateCreditsAdded(ctx context.Context, uid string, amount, total int64) error {
	return p.Publish(ctx, Event{
		Type:    EventTemplateCreditsAdded,
		UID:     uid,
		Amount:  amount,
		Balance: ptr(total),
	})
}

func (p *Publisher) OnPaymentCompleted(ctx context.Context, uid, paymentID string, amount types.Money) error {
	return p.Publish(ctx, Event{
		Type:      EventPaymentCompleted,
		UID:       uid,
		PaymentID: paymentID,
		Price:     &amount,
	})
}

func (p *Publisher) OnPaymentFailed(ctx context.Context, uid, paymentID string, amount types.Money, cause error) error {
	ev := Event{
		Type:      EventPaymentFailed,
		UID:       uid,
		PaymentID: paymentID,
		Price:     &amount,
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	return p.Publish(ctx, ev)
}

func txEvent(typ, uid string, tx transaction.Transaction, balance int64) Event {
	return Event{
		Type:        typ,
		UID:         uid,
		Amount:      tx.Amount,
		Balance:     ptr(balance),
		Kind:        string(tx.Kind),
		Description: tx.Description,
		Transaction: tx.ID,
	}
}

func ptr(v int64) *int64 { return &v }
