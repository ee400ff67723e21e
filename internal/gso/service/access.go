package service

import (
	"github.com/jekmagalaman/gso/internal/gso/entity"
)

// Action names an operation guarded by the authorization gate.
type Action string

const (
	ActionCreateRequest     Action = "create request"
	ActionApprove           Action = "approve"
	ActionAssign            Action = "assign"
	ActionStart             Action = "start"
	ActionSubmitForReview   Action = "submit for review"
	ActionApproveCompletion Action = "approve completion"
	ActionRejectCompletion  Action = "reject completion"
	ActionCancel            Action = "cancel"
	ActionAddReport         Action = "add task report"
	ActionSelectIndicator   Action = "select indicator"
	ActionUploadAttachment  Action = "upload attachment"
	ActionViewRequest       Action = "view request"
	ActionSubmitFeedback    Action = "submit feedback"
	ActionViewFeedback      Action = "view feedback"
	ActionManageInventory   Action = "manage inventory"
	ActionViewInventory     Action = "view inventory"
	ActionViewReports       Action = "view reports"
	ActionEditReports       Action = "edit reports"
	ActionManageIndicators  Action = "manage indicators"
	ActionManageAccounts    Action = "manage accounts"
	ActionViewPersonnel     Action = "view personnel"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID string
	Name   string
	Role   entity.Role
	UnitID string
}

// allowedRoles is the static role table consulted by authorize. Any role may
// act as a requestor; owner-only actions then check request ownership.
var allowedRoles = map[Action][]entity.Role{
	ActionCreateRequest:     entity.Roles,
	ActionApprove:           {entity.RoleDirector},
	ActionAssign:            {entity.RoleUnitHead},
	ActionStart:             {entity.RolePersonnel},
	ActionSubmitForReview:   {entity.RolePersonnel},
	ActionApproveCompletion: {entity.RoleUnitHead},
	ActionRejectCompletion:  {entity.RoleUnitHead},
	ActionCancel:            entity.Roles,
	ActionAddReport:         {entity.RolePersonnel},
	ActionSelectIndicator:   {entity.RoleUnitHead, entity.RolePersonnel},
	ActionUploadAttachment:  entity.Roles,
	ActionViewRequest:       entity.Roles,
	ActionSubmitFeedback:    entity.Roles,
	ActionViewFeedback:      {entity.RoleGSO, entity.RoleDirector},
	ActionManageInventory:   {entity.RoleUnitHead, entity.RoleGSO},
	ActionViewInventory:     {entity.RolePersonnel, entity.RoleUnitHead, entity.RoleGSO, entity.RoleDirector},
	ActionViewReports:       {entity.RoleGSO, entity.RoleDirector},
	ActionEditReports:       {entity.RoleGSO, entity.RoleDirector},
	ActionManageIndicators:  {entity.RoleUnitHead, entity.RoleGSO, entity.RoleDirector},
	ActionManageAccounts:    {entity.RoleGSO, entity.RoleDirector},
	ActionViewPersonnel:     {entity.RoleUnitHead, entity.RoleGSO, entity.RoleDirector},
}

// authorize is the single role gate in front of every service operation.
func authorize(actor Actor, action Action) error {
	if actor.UserID == "" {
		return forbidden(action, "no authenticated user")
	}
	for _, r := range allowedRoles[action] {
		if actor.Role == r {
			return nil
		}
	}
	return forbidden(action, "role "+string(actor.Role)+" is not permitted")
}

// isOverseer reports whether the actor sees every unit.
func isOverseer(actor Actor) bool {
	return actor.Role == entity.RoleGSO || actor.Role == entity.RoleDirector
}

// requireUnit rejects unit-scoped roles acting outside their unit.
func requireUnit(actor Actor, action Action, unitID string) error {
	if isOverseer(actor) {
		return nil
	}
	if actor.UnitID == "" || actor.UnitID != unitID {
		return forbidden(action, "request belongs to another unit")
	}
	return nil
}

// requireOwner rejects actors who did not file the request.
func requireOwner(actor Actor, action Action, requestorID string) error {
	if actor.UserID != requestorID {
		return forbidden(action, "only the requestor may do this")
	}
	return nil
}
