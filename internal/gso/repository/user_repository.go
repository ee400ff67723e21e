package repository

import (
	"context"
	"strings"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"gorm.io/gorm"
)

// UserRepository reads and writes accounts.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == "" {
		user.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.User, error) {
	var users []entity.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// UserQuery filters List.
type UserQuery struct {
	Role   entity.Role
	UnitID string
	Search string
}

func (r *UserRepository) List(ctx context.Context, q UserQuery) ([]entity.User, error) {
	var users []entity.User
	query := r.db.WithContext(ctx).Model(&entity.User{}).Where("is_active = ?", true)
	if q.Role != "" {
		query = query.Where("role = ?", q.Role)
	}
	if q.UnitID != "" {
		query = query.Where("unit_id = ?", q.UnitID)
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}
	err := query.Order("last_name ASC, first_name ASC").Find(&users).Error
	return users, err
}

// FindUnitHeads returns the active unit heads of a unit.
func (r *UserRepository) FindUnitHeads(ctx context.Context, unitID string) ([]entity.User, error) {
	return r.List(ctx, UserQuery{Role: entity.RoleUnitHead, UnitID: unitID})
}

// FindByIdentifier resolves a personnel name typed by a user. It tries the
// username, then "First Last", then a partial name match within the unit.
func (r *UserRepository) FindByIdentifier(ctx context.Context, unitID, identifier string) (*entity.User, error) {
	ident := strings.ToLower(strings.TrimSpace(identifier))
	if ident == "" {
		return nil, ErrNotFound
	}

	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&entity.User{}).Where("role = ?", entity.RolePersonnel)
		if unitID != "" {
			q = q.Where("unit_id = ?", unitID)
		}
		return q
	}

	var user entity.User
	if err := base().Where("LOWER(username) = ?", ident).First(&user).Error; err == nil {
		return &user, nil
	}

	if parts := strings.Fields(ident); len(parts) >= 2 {
		first := strings.Join(parts[:len(parts)-1], " ")
		last := parts[len(parts)-1]
		err := base().
			Where("LOWER(first_name) = ? AND LOWER(last_name) = ?", first, last).
			First(&user).Error
		if err == nil {
			return &user, nil
		}
	}

	like := "%" + ident + "%"
	err := base().
		Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like).
		Order("username ASC").
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindAvailablePersonnel returns unit personnel with no request in an active status.
func (r *UserRepository) FindAvailablePersonnel(ctx context.Context, unitID string, activeStatuses []string) ([]entity.User, error) {
	busy := r.db.Model(&entity.RequestAssignment{}).
		Select("request_assignments.user_id").
		Joins("JOIN service_requests ON service_requests.id = request_assignments.request_id").
		Where("service_requests.status IN ?", activeStatuses)

	var users []entity.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND unit_id = ? AND is_active = ?", entity.RolePersonnel, unitID, true).
		Where("id NOT IN (?)", busy).
		Order("last_name ASC, first_name ASC").
		Find(&users).Error
	return users, err
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// UnitRepository covers units and departments.
type UnitRepository struct {
	db *gorm.DB
}

func NewUnitRepository(db *gorm.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

func (r *UnitRepository) Create(ctx context.Context, unit *entity.Unit) error {
	if unit.ID == "" {
		unit.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(unit).Error
}

func (r *UnitRepository) FindByID(ctx context.Context, id string) (*entity.Unit, error) {
	var unit entity.Unit
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&unit).Error; err != nil {
		return nil, notFound(err)
	}
	return &unit, nil
}

func (r *UnitRepository) List(ctx context.Context) ([]entity.Unit, error) {
	var units []entity.Unit
	err := r.db.WithContext(ctx).Order("name ASC").Find(&units).Error
	return units, err
}

func (r *UnitRepository) CreateDepartment(ctx context.Context, dept *entity.Department) error {
	if dept.ID == "" {
		dept.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(dept).Error
}

func (r *UnitRepository) FindDepartmentByID(ctx context.Context, id string) (*entity.Department, error) {
	var dept entity.Department
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dept).Error; err != nil {
		return nil, notFound(err)
	}
	return &dept, nil
}

func (r *UnitRepository) ListDepartments(ctx context.Context) ([]entity.Department, error) {
	var depts []entity.Department
	err := r.db.WithContext(ctx).Order("name ASC").Find(&depts).Error
	return depts, err
}
