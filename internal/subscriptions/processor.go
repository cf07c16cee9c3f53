package subscriptions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
)

// FailureToken is the sentinel charge token that always declines. Lets
// integration environments exercise the failure path deterministically.
const FailureToken = "fail_payment"

// ChargeProcessor settles a payment outside the gateway-mediated flow.
type ChargeProcessor interface {
	// Charge attempts to settle the payment. On success it returns the
	// processor's transaction reference.
	Charge(ctx context.Context, payment *models.Payment, token string) (string, error)
}

// SimulatedProcessor is a deterministic stand-in for a real charge backend.
// Every charge succeeds unless the caller passes FailureToken.
type SimulatedProcessor struct{}

// NewSimulatedProcessor returns the deterministic processor.
func NewSimulatedProcessor() *SimulatedProcessor {
	return &SimulatedProcessor{}
}

// Charge settles the payment unless the sentinel failure token is supplied.
func (p *SimulatedProcessor) Charge(_ context.Context, payment *models.Payment, token string) (string, error) {
	if strings.TrimSpace(token) == FailureToken {
		return "", fmt.Errorf("charge declined")
	}
	return fmt.Sprintf("txn_%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:20]), nil
}
