package payment

import (
	"context"
	"time"

	"github.com/xraph/credits/id"
	"github.com/xraph/credits/types"
)

// Intent is a single charge request submitted to a Gateway.
type Intent struct {
	ID          id.ID             `json:"id"`
	UserID      string            `json:"user_id"`
	ProductID   string            `json:"product_id"`
	Amount      types.Money       `json:"amount"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Gateway charges the customer for an intent and returns the gateway's
// reference for the charge.
type Gateway interface {
	Charge(ctx context.Context, intent Intent) (string, error)
}

// DefaultMockLatency approximates a hosted checkout round trip.
const DefaultMockLatency = 1500 * time.Millisecond

// MockGateway approves every charge after a fixed delay.
type MockGateway struct {
	Latency time.Duration
}

// NewMockGateway returns a MockGateway with the given latency. A negative
// latency selects DefaultMockLatency.
func NewMockGateway(latency time.Duration) *MockGateway {
	if latency < 0 {
		latency = DefaultMockLatency
	}
	return &MockGateway{Latency: latency}
}

// Charge implements Gateway.
func (g *MockGateway) Charge(ctx context.Context, _ Intent) (string, error) {
	if g.Latency > 0 {
		t := time.NewTimer(g.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return id.NewPaymentID().String(), nil
}
