// Package transaction holds the append-only audit record written alongside
// every subscription lifecycle transition.
package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type classifies a lifecycle transition.
type Type string

const (
	TypeCreate Type = "CREATE"
	TypeRenew  Type = "RENEW"
	TypeCancel Type = "CANCEL"
	TypeExpire Type = "EXPIRE"
)

// Transaction is one audit row. Rows are never mutated or deleted.
type Transaction struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	Type           Type
	Note           string
	CreatedAt      time.Time
}

// Log appends audit rows. It fails only on storage errors; there is no
// business validation here.
type Log interface {
	Append(ctx context.Context, subscriptionID uuid.UUID, t Type, note string) error
}
