package model

import (
	"github.com/google/uuid"

	"deviation-service/internal/workflow"
)

type UserRole string

const (
	UserRoleAdmin          UserRole = "ADMIN"
	UserRoleRD             UserRole = "RD"
	UserRoleQuality        UserRole = "QUALITY"
	UserRoleProduction     UserRole = "PRODUCTION"
	UserRoleGeneralManager UserRole = "GENERAL_MANAGER"
	UserRoleRequester      UserRole = "REQUESTER"
)

type Principal struct {
	UserID     uuid.UUID
	FullName   string
	Role       UserRole
	Department string
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

// IsApprover reports whether the principal belongs to any sign-off
// department (admins included).
func (p Principal) IsApprover() bool {
	switch p.Role {
	case UserRoleAdmin, UserRoleRD, UserRoleQuality, UserRoleProduction, UserRoleGeneralManager:
		return true
	}
	return false
}

// CanSignOff reports whether the principal may approve the given stage.
func (p Principal) CanSignOff(stage workflow.Stage) bool {
	if p.IsAdmin() {
		return true
	}
	switch stage {
	case workflow.StageRD:
		return p.Role == UserRoleRD
	case workflow.StageQuality:
		return p.Role == UserRoleQuality
	case workflow.StageProduction:
		return p.Role == UserRoleProduction
	case workflow.StageGeneralManager:
		return p.Role == UserRoleGeneralManager
	}
	return false
}

func (p Principal) Actor() Actor {
	if p.UserID == uuid.Nil {
		return SystemActor()
	}
	return Actor{Kind: ActorAuthenticated, UserID: p.UserID, Name: p.FullName}
}
