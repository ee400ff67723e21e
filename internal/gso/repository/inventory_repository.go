package repository

import (
	"context"
	"strings"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"gorm.io/gorm"
)

// InventoryRepository owns stock lines and their movement ledger.
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *InventoryRepository) WithTx(tx *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: tx}
}

func (r *InventoryRepository) Create(ctx context.Context, item *entity.InventoryItem) error {
	if item.ID == "" {
		item.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *InventoryRepository) FindByID(ctx context.Context, id string) (*entity.InventoryItem, error) {
	var item entity.InventoryItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// FindForUnit returns the item only when the unit owns it.
func (r *InventoryRepository) FindForUnit(ctx context.Context, id, unitID string) (*entity.InventoryItem, error) {
	var item entity.InventoryItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND unit_id = ?", id, unitID).
		First(&item).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// InventoryQuery filters List.
type InventoryQuery struct {
	UnitID   string
	Category string
	Search   string
	Page     int
	PageSize int
}

func (r *InventoryRepository) List(ctx context.Context, q InventoryQuery) ([]entity.InventoryItem, int64, error) {
	var items []entity.InventoryItem
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.InventoryItem{}).Where("is_active = ?", true)
	if q.UnitID != "" {
		query = query.Where("unit_id = ?", q.UnitID)
	}
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(q.Page, q.PageSize)
	err := query.Order("name ASC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// AddQuantity changes stock by delta in a single statement. A negative delta
// only applies while enough stock remains; it reports whether the row changed.
func (r *InventoryRepository) AddQuantity(ctx context.Context, id string, delta int) (bool, error) {
	query := r.db.WithContext(ctx).Model(&entity.InventoryItem{}).Where("id = ?", id)
	if delta < 0 {
		query = query.Where("quantity >= ?", -delta)
	}
	result := query.Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *InventoryRepository) CreateTransaction(ctx context.Context, tx *entity.InventoryTransaction) error {
	if tx.ID == "" {
		tx.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *InventoryRepository) ListTransactions(ctx context.Context, itemID string) ([]entity.InventoryTransaction, error) {
	var txs []entity.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at ASC").
		Find(&txs).Error
	return txs, err
}

// StockSummary counts items by stock level.
type StockSummary struct {
	TotalItems int64 `json:"total_items"`
	LowStock   int64 `json:"low_stock"`
	OutOfStock int64 `json:"out_of_stock"`
}

func (r *InventoryRepository) Summary(ctx context.Context, unitID string) (*StockSummary, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&entity.InventoryItem{}).Where("is_active = ?", true)
		if unitID != "" {
			q = q.Where("unit_id = ?", unitID)
		}
		return q
	}

	var s StockSummary
	if err := base().Count(&s.TotalItems).Error; err != nil {
		return nil, err
	}
	if err := base().Where("quantity > 0 AND quantity <= ?", entity.LowStockThreshold).Count(&s.LowStock).Error; err != nil {
		return nil, err
	}
	if err := base().Where("quantity = 0").Count(&s.OutOfStock).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
