package entity

import (
	"strings"
	"time"
)

// Role is the acting user's role. The set is closed.
type Role string

const (
	RoleRequestor Role = "requestor"
	RolePersonnel Role = "personnel"
	RoleUnitHead  Role = "unit_head"
	RoleGSO       Role = "gso"
	RoleDirector  Role = "director"
)

// Roles lists every known role.
var Roles = []Role{RoleRequestor, RolePersonnel, RoleUnitHead, RoleGSO, RoleDirector}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Unit is an organizational sub-office that owns inventory, personnel and requests.
type Unit struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:100;not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Unit) TableName() string { return "units" }

// Department is the requesting office.
type Department struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:150;not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

func (Department) TableName() string { return "departments" }

// User is an account of any role. Unit is empty for requestors outside the GSO.
type User struct {
	ID               string    `json:"id" gorm:"primaryKey;size:32"`
	Username         string    `json:"username" gorm:"size:64;not null;uniqueIndex"`
	FirstName        string    `json:"first_name" gorm:"size:64"`
	LastName         string    `json:"last_name" gorm:"size:64"`
	Email            string    `json:"email" gorm:"size:128"`
	Role             Role      `json:"role" gorm:"size:20;not null;index"`
	UnitID           *string   `json:"unit_id" gorm:"size:32;index"`
	DepartmentID     *string   `json:"department_id" gorm:"size:32"`
	EmploymentStatus string    `json:"employment_status" gorm:"size:50"`
	Position         string    `json:"position" gorm:"size:100"`
	PasswordHash     string    `json:"-" gorm:"size:100"`
	IsActive         bool      `json:"is_active" gorm:"default:true"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Unit       *Unit       `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
}

func (User) TableName() string { return "users" }

// FullName returns "First Last", falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// InUnit reports whether the user belongs to the given unit.
func (u *User) InUnit(unitID string) bool {
	return u.UnitID != nil && *u.UnitID == unitID
}
