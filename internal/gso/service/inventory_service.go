package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryService manages unit stock. Every movement writes a ledger row.
type InventoryService struct {
	db       *gorm.DB
	repo     *repository.InventoryRepository
	unitRepo *repository.UnitRepository
}

func NewInventoryService(db *gorm.DB, repo *repository.InventoryRepository, unitRepo *repository.UnitRepository) *InventoryService {
	return &InventoryService{db: db, repo: repo, unitRepo: unitRepo}
}

// CreateItemInput describes a new stock line.
type CreateItemInput struct {
	UnitID            string          `json:"unit_id" validate:"required"`
	Name              string          `json:"name" validate:"required,max=255"`
	Description       string          `json:"description"`
	Category          string          `json:"category" validate:"max=100"`
	Quantity          int             `json:"quantity" validate:"min=0"`
	UnitOfMeasurement string          `json:"unit_of_measurement" validate:"max=50"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
}

func (s *InventoryService) CreateItem(ctx context.Context, actor Actor, input CreateItemInput) (*entity.InventoryItem, error) {
	if err := authorize(actor, ActionManageInventory); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.UnitCost.IsNegative() {
		return nil, validationErr("unit_cost", "must not be negative")
	}
	if err := requireUnit(actor, ActionManageInventory, input.UnitID); err != nil {
		return nil, err
	}
	if _, err := s.unitRepo.FindByID(ctx, input.UnitID); err != nil {
		return nil, lookupErr(err, "unit", input.UnitID)
	}

	item := &entity.InventoryItem{
		UnitID:            input.UnitID,
		Name:              input.Name,
		Description:       input.Description,
		Category:          input.Category,
		Quantity:          input.Quantity,
		UnitOfMeasurement: input.UnitOfMeasurement,
		UnitCost:          input.UnitCost,
		IsActive:          true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, item); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		if item.Quantity == 0 {
			return nil
		}
		return repo.CreateTransaction(ctx, &entity.InventoryTransaction{
			ItemID:          item.ID,
			ItemName:        item.Name,
			TransactionType: entity.TxTypeAdjust,
			Quantity:        item.Quantity,
			BalanceAfter:    item.Quantity,
			ReferenceType:   entity.RefTypeManual,
			Notes:           "opening balance",
			CreatedBy:       actor.UserID,
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Get returns an item owned by unitID.
func (s *InventoryService) Get(ctx context.Context, itemID, unitID string) (*entity.InventoryItem, error) {
	item, err := s.repo.FindForUnit(ctx, itemID, unitID)
	if err != nil {
		return nil, lookupErr(err, "inventory item", itemID)
	}
	return item, nil
}

// GetItem returns an item visible to the actor.
func (s *InventoryService) GetItem(ctx context.Context, actor Actor, itemID string) (*entity.InventoryItem, error) {
	if err := authorize(actor, ActionViewInventory); err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, lookupErr(err, "inventory item", itemID)
	}
	if err := requireUnit(actor, ActionViewInventory, item.UnitID); err != nil {
		return nil, err
	}
	return item, nil
}

// List returns items of the actor's unit, or of q.UnitID for overseers.
func (s *InventoryService) List(ctx context.Context, actor Actor, q repository.InventoryQuery) ([]entity.InventoryItem, int64, error) {
	if err := authorize(actor, ActionViewInventory); err != nil {
		return nil, 0, err
	}
	if !isOverseer(actor) {
		q.UnitID = actor.UnitID
	}
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list inventory: %w", err)
	}
	return items, total, nil
}

// AdjustInput is a manual stock correction.
type AdjustInput struct {
	Delta int    `json:"delta"`
	Notes string `json:"notes"`
}

// Adjust changes stock by delta. The result is never negative.
func (s *InventoryService) Adjust(ctx context.Context, actor Actor, itemID string, input AdjustInput) (*entity.InventoryItem, error) {
	if err := authorize(actor, ActionManageInventory); err != nil {
		return nil, err
	}
	if input.Delta == 0 {
		return nil, validationErr("delta", "must not be zero")
	}
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, lookupErr(err, "inventory item", itemID)
	}
	if err := requireUnit(actor, ActionManageInventory, item.UnitID); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.move(ctx, s.repo.WithTx(tx), item.UnitID, itemID, input.Delta, entity.TxTypeAdjust, entity.RefTypeManual, "", input.Notes, actor.UserID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, itemID)
}

func (s *InventoryService) Transactions(ctx context.Context, actor Actor, itemID string) ([]entity.InventoryTransaction, error) {
	if _, err := s.GetItem(ctx, actor, itemID); err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *InventoryService) Summary(ctx context.Context, actor Actor) (*repository.StockSummary, error) {
	if err := authorize(actor, ActionViewInventory); err != nil {
		return nil, err
	}
	unitID := ""
	if !isOverseer(actor) {
		unitID = actor.UnitID
	}
	sum, err := s.repo.Summary(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("stock summary: %w", err)
	}
	return sum, nil
}

// reserve takes qty of an item for a request inside tx.
func (s *InventoryService) reserve(ctx context.Context, tx *gorm.DB, unitID, requestID, itemID string, qty int, operatorID string) error {
	repo := s.repo.WithTx(tx)
	if err := s.move(ctx, repo, unitID, itemID, -qty, entity.TxTypeReserve, entity.RefTypeRequest, requestID, "", operatorID); err != nil {
		return err
	}
	return repository.NewRequestRepository(tx).CreateMaterial(ctx, &entity.RequestMaterial{
		RequestID: requestID,
		ItemID:    itemID,
		Quantity:  qty,
	})
}

// releaseRequest returns every reservation of a request to stock and deletes
// the reservation rows inside tx.
func (s *InventoryService) releaseRequest(ctx context.Context, tx *gorm.DB, requestID, operatorID string) error {
	reqRepo := repository.NewRequestRepository(tx)
	materials, err := reqRepo.ListMaterials(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load reservations: %w", err)
	}
	repo := s.repo.WithTx(tx)
	for _, m := range materials {
		if err := s.move(ctx, repo, "", m.ItemID, m.Quantity, entity.TxTypeRelease, entity.RefTypeRequest, requestID, "", operatorID); err != nil {
			return err
		}
	}
	if err := reqRepo.DeleteMaterials(ctx, requestID); err != nil {
		return fmt.Errorf("delete reservations: %w", err)
	}
	return nil
}

// move applies delta with a conditional update and writes the ledger row.
// unitID, when set, must own the item.
func (s *InventoryService) move(ctx context.Context, repo *repository.InventoryRepository, unitID, itemID string, delta int, txType, refType, refID, notes, operatorID string) error {
	var item *entity.InventoryItem
	var err error
	if unitID != "" {
		item, err = repo.FindForUnit(ctx, itemID, unitID)
	} else {
		item, err = repo.FindByID(ctx, itemID)
	}
	if err != nil {
		return lookupErr(err, "inventory item", itemID)
	}

	ok, err := repo.AddQuantity(ctx, itemID, delta)
	if err != nil {
		return fmt.Errorf("update stock of %s: %w", item.Name, err)
	}
	if !ok {
		current, ferr := repo.FindByID(ctx, itemID)
		if ferr != nil {
			return lookupErr(ferr, "inventory item", itemID)
		}
		return &InsufficientStockError{
			ItemID:    itemID,
			ItemName:  current.Name,
			Requested: -delta,
			Available: current.Quantity,
		}
	}

	after, err := repo.FindByID(ctx, itemID)
	if err != nil {
		return lookupErr(err, "inventory item", itemID)
	}
	return repo.CreateTransaction(ctx, &entity.InventoryTransaction{
		ItemID:          itemID,
		ItemName:        item.Name,
		TransactionType: txType,
		Quantity:        delta,
		BalanceAfter:    after.Quantity,
		ReferenceType:   refType,
		ReferenceID:     refID,
		Notes:           notes,
		CreatedBy:       operatorID,
	})
}

// IsInsufficientStock reports whether err is an InsufficientStockError.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}
