package services

import (
	"sort"

	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/pkg/apperrors"
)

// Operation is an action the AuthorizationGate can permit.
type Operation string

const (
	OpViewSelf        Operation = "view_self"
	OpEditOwnProfile  Operation = "edit_own_profile"
	OpUpload          Operation = "upload"
	OpViewUsers       Operation = "view_users"
	OpViewProject     Operation = "view_project"
	OpUpdateProject   Operation = "update_project"
	OpManageMembers   Operation = "manage_members"
	OpCreateProject   Operation = "create_project"
	OpDeleteProject   Operation = "delete_project"
	OpManageUsers     Operation = "manage_users"
	OpDeleteUser      Operation = "delete_user"
	OpViewUserHistory Operation = "view_user_history"
)

var allOperations = []Operation{
	OpViewSelf, OpEditOwnProfile, OpUpload, OpViewUsers, OpViewProject,
	OpUpdateProject, OpManageMembers, OpCreateProject, OpDeleteProject,
	OpManageUsers, OpDeleteUser, OpViewUserHistory,
}

// ProjectRole is the caller's standing on the project an operation
// targets.
type ProjectRole string

const (
	ProjectRoleNone   ProjectRole = "none"
	ProjectRoleMember ProjectRole = "member"
	ProjectRoleLeader ProjectRole = "leader"
)

// Caller is the freshly loaded state the gate decides on. It must be
// rebuilt for every request.
type Caller struct {
	UserID        uint
	Qualification models.Qualification
	IsAdmin       bool
	ProjectRole   ProjectRole
}

// Allows reports whether c may perform op.
func (c Caller) Allows(op Operation) bool {
	canReadProjects := c.Qualification.AtLeast(models.QualificationRegular)

	switch op {
	case OpViewSelf, OpEditOwnProfile:
		return true
	case OpUpload:
		return c.IsAdmin || c.Qualification.AtLeast(models.QualificationAssociate)
	case OpViewUsers:
		return c.IsAdmin || canReadProjects
	case OpViewProject:
		return canReadProjects
	case OpUpdateProject, OpManageMembers:
		return canReadProjects && (c.IsAdmin || c.ProjectRole == ProjectRoleLeader)
	case OpCreateProject, OpDeleteProject, OpManageUsers, OpDeleteUser, OpViewUserHistory:
		return c.IsAdmin
	}
	return false
}

// Authorize returns ErrForbidden unless c may perform op.
func (c Caller) Authorize(op Operation) error {
	if !c.Allows(op) {
		return apperrors.NewForbidden("permission denied: " + string(op))
	}
	return nil
}

// Permitted lists every operation c may perform, sorted by name.
func (c Caller) Permitted() []Operation {
	var ops []Operation
	for _, op := range allOperations {
		if c.Allows(op) {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
