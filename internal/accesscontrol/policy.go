package accesscontrol

import (
	"github.com/docvault/docvault/internal/apperrors"
	"github.com/docvault/docvault/internal/models"
)

// Action is a mutating or reading operation checked by the policy.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionCancel Action = "cancel"
)

// Resource is anything with an owning user. IngestionProcesses resolve
// ownership through their document's owner.
type Resource interface {
	OwnerID() string
}

// Authorize is the single policy decision point consulted before every
// mutating operation. It is pure: no lookups, no side effects.
//
// Callers must resolve existence before calling: a missing resource is
// NotFound and never reaches this function, so the policy cannot leak
// whether an unowned id exists.
func Authorize(actor *models.User, action Action, res Resource) error {
	if actor == nil {
		return apperrors.Forbiddenf("no authenticated user")
	}
	if !actor.Active {
		return apperrors.Forbiddenf("user account is deactivated")
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}

	switch action {
	case ActionCreate:
		// Editors may create new documents and ingestion processes freely.
		if actor.Role == models.RoleEditor {
			return nil
		}
		return apperrors.Forbiddenf("viewers cannot create resources")
	case ActionRead:
		if res != nil && res.OwnerID() == actor.ID {
			return nil
		}
		return apperrors.Forbiddenf("you do not have permission to access this resource")
	case ActionUpdate, ActionDelete, ActionCancel:
		if actor.Role == models.RoleViewer {
			return apperrors.Forbiddenf("viewers cannot modify resources")
		}
		if res != nil && res.OwnerID() == actor.ID {
			return nil
		}
		return apperrors.Forbiddenf("editors can only modify their own resources")
	}
	return apperrors.Forbiddenf("unsupported action %q", action)
}
