package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock thresholds used by the inventory summary.
const (
	LowStockThreshold = 10
)

// Inventory transaction types
const (
	TxTypeReserve = "RESERVE" // assignment reserves stock
	TxTypeRelease = "RELEASE" // reassignment or cancel returns stock
	TxTypeAdjust  = "ADJUST"  // manual correction
)

// Transaction reference types
const (
	RefTypeRequest = "REQUEST"
	RefTypeManual  = "MANUAL"
)

// InventoryItem is a stock line owned by one unit. Quantity never goes negative.
type InventoryItem struct {
	ID                string          `json:"id" gorm:"primaryKey;size:32"`
	UnitID            string          `json:"unit_id" gorm:"size:32;not null;index"`
	Name              string          `json:"name" gorm:"size:255;not null"`
	Description       string          `json:"description" gorm:"type:text"`
	Category          string          `json:"category" gorm:"size:100"`
	Quantity          int             `json:"quantity" gorm:"not null;default:0"`
	UnitOfMeasurement string          `json:"unit_of_measurement" gorm:"size:50"`
	UnitCost          decimal.Decimal `json:"unit_cost" gorm:"type:decimal(12,2);not null"`
	IsActive          bool            `json:"is_active" gorm:"default:true"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}

// InventoryTransaction is the stock movement ledger. Quantity is signed: positive credits stock.
type InventoryTransaction struct {
	ID              string    `json:"id" gorm:"primaryKey;size:32"`
	ItemID          string    `json:"item_id" gorm:"size:32;not null;index"`
	ItemName        string    `json:"item_name" gorm:"size:255"`
	TransactionType string    `json:"transaction_type" gorm:"size:20;not null"`
	Quantity        int       `json:"quantity" gorm:"not null"`
	BalanceAfter    int       `json:"balance_after"`
	ReferenceType   string    `json:"reference_type" gorm:"size:20;not null"`
	ReferenceID     string    `json:"reference_id" gorm:"size:32;index"`
	Notes           string    `json:"notes" gorm:"type:text"`
	CreatedBy       string    `json:"created_by" gorm:"size:32;not null"`
	CreatedAt       time.Time `json:"created_at"`
}

func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}
