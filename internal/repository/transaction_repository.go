package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	txDomain "github.com/widgetworks/service-subscription/internal/domain/transaction"
)

// TransactionModel is the GORM model for the transactions table.
type TransactionModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubscriptionID uuid.UUID `gorm:"type:uuid;not null;index"`
	Type           string    `gorm:"column:transaction_type;type:varchar(20);not null"`
	Note           string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (TransactionModel) TableName() string { return "transactions" }

// GormTransactionLog implements transaction.Log using GORM. Rows are only
// ever inserted.
type GormTransactionLog struct {
	db *gorm.DB
}

// NewGormTransactionLog creates a new GormTransactionLog.
func NewGormTransactionLog(db *gorm.DB) *GormTransactionLog {
	return &GormTransactionLog{db: db}
}

// Append writes one audit row for a lifecycle transition.
func (r *GormTransactionLog) Append(ctx context.Context, subscriptionID uuid.UUID, t txDomain.Type, note string) error {
	model := TransactionModel{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		Type:           string(t),
		Note:           note,
		CreatedAt:      time.Now().UTC(),
	}
	return dbFrom(ctx, r.db).Create(&model).Error
}
