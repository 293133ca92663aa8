// Package execution wraps every order mutation with the retry and
// ambiguity-resolution policy. The engine never talks to the gateway
// directly for writes.
package execution

import (
	"fmt"
	"strings"

	"mako/internal/gateway/exchange"

	"github.com/google/uuid"
)

// OutcomeKind is the terminal classification of one logical order intent.
type OutcomeKind string

const (
	OutcomeFilled   OutcomeKind = "FILLED"
	OutcomeRejected OutcomeKind = "REJECTED"
	OutcomeUnknown  OutcomeKind = "UNKNOWN"
)

// Outcome is the result of executing one intent. Unknown means the policy
// exhausted its budget without learning the truth; the caller must reconcile
// against live exchange state, never guess.
type Outcome struct {
	Kind   OutcomeKind
	Fill   exchange.OrderResult
	Reason string
	Err    error
}

func filled(fill exchange.OrderResult) Outcome {
	return Outcome{Kind: OutcomeFilled, Fill: fill}
}

func rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}

func unknown(err error) Outcome {
	return Outcome{Kind: OutcomeUnknown, Err: err}
}

// IdempotencyKey derives a client order id from the position epoch and the
// intent kind. Retries of the same intent reuse the same key, so the
// exchange (and reconciliation) can tell a retry from a new order.
func IdempotencyKey(epoch int64, kind string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("mako-%d-%s-%s", epoch, kind, suffix)
}
