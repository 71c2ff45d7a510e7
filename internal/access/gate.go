package access

import (
	"context"

	"github.com/classbeam/liveclass-server-go/internal/auth"
	apperrors "github.com/classbeam/liveclass-server-go/internal/errors"
	"github.com/classbeam/liveclass-server-go/internal/model"
	"github.com/classbeam/liveclass-server-go/internal/repository"
)

// Grant is the result of an authorization check. Capabilities are resolved
// once per action instead of re-deriving role checks at each call site.
type Grant struct {
	Slot        *model.Slot
	CanSend     bool
	CanModerate bool
}

// Gate makes pure authorization decisions for room actions. It reads the
// session's scheduling slot but performs no writes.
type Gate struct {
	slotRepo repository.SlotRepository
}

func NewGate(slotRepo repository.SlotRepository) *Gate {
	return &Gate{slotRepo: slotRepo}
}

// Authorize checks whether actor may participate in the given session.
// Tenant scoping is resolved first, then role-specific assignment rules:
// a teacher must be the slot's assigned teacher, a student must present
// the slot's batch id. batchID is only consulted for students.
func (g *Gate) Authorize(ctx context.Context, actor auth.Identity, session *model.Session, batchID string) (*Grant, error) {
	if !actor.IsSuperUser() {
		if actor.TenantID == "" || actor.TenantID != session.TenantID {
			return nil, apperrors.CrossTenantForbidden()
		}
	}

	slot, err := g.slotRepo.FindByID(ctx, session.SlotID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if slot == nil {
		return nil, apperrors.NotFound("Linked slot")
	}

	switch actor.Role {
	case model.RoleTeacher:
		if slot.TeacherID != actor.UserID {
			return nil, apperrors.NotAssignedTeacher()
		}
	case model.RoleStudent:
		if batchID == "" || slot.BatchID != batchID {
			return nil, apperrors.NotInBatch()
		}
	}
	// Admin roles join and observe by default.

	return &Grant{
		Slot:        slot,
		CanSend:     actor.Role.CanSendMessages(),
		CanModerate: actor.Role.IsModerationCapable(),
	}, nil
}

// AuthorizeModeration is Authorize restricted to moderation-capable roles.
func (g *Gate) AuthorizeModeration(ctx context.Context, actor auth.Identity, session *model.Session) (*Grant, error) {
	if !actor.Role.IsModerationCapable() {
		return nil, apperrors.NotModerator()
	}
	grant, err := g.Authorize(ctx, actor, session, "")
	if err != nil {
		return nil, err
	}
	if !grant.CanModerate {
		return nil, apperrors.NotModerator()
	}
	return grant, nil
}

// AuthorizeEnd is Authorize restricted to the slot's assigned teacher.
func (g *Gate) AuthorizeEnd(ctx context.Context, actor auth.Identity, session *model.Session) (*Grant, error) {
	if actor.Role != model.RoleTeacher {
		return nil, apperrors.Forbidden("Only the assigned teacher can end the class")
	}
	return g.Authorize(ctx, actor, session, "")
}
