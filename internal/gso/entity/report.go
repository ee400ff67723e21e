package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// FallbackIndicatorCode groups WARs that carry no success indicator.
const FallbackIndicatorCode = "General"

// RemarkComplied is the default remark of an IPMT row with a narrative.
const RemarkComplied = "COMPLIED"

// SuccessIndicator is a coded performance category scoped to a unit.
type SuccessIndicator struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	UnitID      string    `json:"unit_id" gorm:"size:32;not null;uniqueIndex:idx_indicator_unit_code"`
	Code        string    `json:"code" gorm:"size:50;not null;uniqueIndex:idx_indicator_unit_code"`
	Description string    `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
}

func (SuccessIndicator) TableName() string { return "success_indicators" }

// WorkAccomplishmentReport is derived exactly once from a completed request.
type WorkAccomplishmentReport struct {
	ID                   string                      `json:"id" gorm:"primaryKey;size:32"`
	ControlNumber        string                      `json:"control_number" gorm:"size:30;uniqueIndex"`
	RequestID            string                      `json:"request_id" gorm:"size:32;not null;uniqueIndex"`
	UnitID               string                      `json:"unit_id" gorm:"size:32;not null;index"`
	RequestingOfficeName string                      `json:"requesting_office_name" gorm:"size:255"`
	PersonnelNames       datatypes.JSONSlice[string] `json:"personnel_names"`
	ActivityName         string                      `json:"activity_name" gorm:"size:255"`
	Description          string                      `json:"description" gorm:"type:text"`
	IndicatorID          *string                     `json:"indicator_id" gorm:"size:32;index"`
	Status               string                      `json:"status" gorm:"size:20"`
	DateStarted          time.Time                   `json:"date_started" gorm:"index"`
	DateCompleted        time.Time                   `json:"date_completed"`
	MaterialCost         decimal.Decimal             `json:"material_cost" gorm:"type:decimal(12,2);not null"`
	LaborCost            decimal.Decimal             `json:"labor_cost" gorm:"type:decimal(12,2);not null"`
	TotalCost            decimal.Decimal             `json:"total_cost" gorm:"type:decimal(12,2);not null"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`

	Unit      *Unit             `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
	Indicator *SuccessIndicator `json:"indicator,omitempty" gorm:"foreignKey:IndicatorID"`
	Personnel []WARPersonnel    `json:"personnel,omitempty" gorm:"foreignKey:WARID"`
}

func (WorkAccomplishmentReport) TableName() string { return "work_accomplishment_reports" }

// WARSequence is the per-month control number counter. Month is YYYYMM.
type WARSequence struct {
	Month   string `gorm:"primaryKey;size:6"`
	Counter int    `gorm:"not null"`
}

func (WARSequence) TableName() string { return "war_sequences" }

// IndicatorCode returns the grouping code, FallbackIndicatorCode when none is set.
func (w *WorkAccomplishmentReport) IndicatorCode() string {
	if w.Indicator != nil && w.Indicator.Code != "" {
		return w.Indicator.Code
	}
	return FallbackIndicatorCode
}

// WARPersonnel snapshots the personnel assigned when the WAR was created.
type WARPersonnel struct {
	WARID  string `json:"war_id" gorm:"column:war_id;primaryKey;size:32"`
	UserID string `json:"user_id" gorm:"primaryKey;size:32;index"`
}

func (WARPersonnel) TableName() string { return "war_personnel" }

// IPMTEntry is the monthly accomplishment of one person against one indicator.
// Unique on (personnel, unit, month, indicator).
type IPMTEntry struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	PersonnelID    string    `json:"personnel_id" gorm:"size:32;not null;uniqueIndex:idx_ipmt_key"`
	UnitID         string    `json:"unit_id" gorm:"size:32;not null;uniqueIndex:idx_ipmt_key"`
	Month          string    `json:"month" gorm:"size:7;not null;uniqueIndex:idx_ipmt_key"`
	IndicatorID    string    `json:"indicator_id" gorm:"size:32;not null;uniqueIndex:idx_ipmt_key"`
	Accomplishment string    `json:"accomplishment" gorm:"type:text"`
	Remarks        string    `json:"remarks" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Indicator *SuccessIndicator `json:"indicator,omitempty" gorm:"foreignKey:IndicatorID"`
	Reports   []IPMTReport      `json:"reports,omitempty" gorm:"foreignKey:IPMTID"`
}

func (IPMTEntry) TableName() string { return "ipmt_entries" }

// IPMTReport links an IPMT entry to a WAR that fed its narrative.
type IPMTReport struct {
	IPMTID string `json:"ipmt_id" gorm:"column:ipmt_id;primaryKey;size:32"`
	WARID  string `json:"war_id" gorm:"column:war_id;primaryKey;size:32;index"`
}

func (IPMTReport) TableName() string { return "ipmt_reports" }
