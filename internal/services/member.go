package services

import (
	"context"

	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/pkg/apperrors"
	"github.com/waffice/backend/pkg/logger"
	"gorm.io/gorm"
)

// MemberService runs membership operations of one project, each in its
// own transaction under the project's row lock.
type MemberService struct {
	db   *gorm.DB
	core *Core
}

func NewMemberService(db *gorm.DB, core *Core) *MemberService {
	return &MemberService{db: db, core: core}
}

type AddMemberParams struct {
	ActorID   uint
	ProjectID uint
	UserID    uint
	Role      models.MemberRole
	Position  string
}

type RemoveMemberParams struct {
	ActorID   uint
	ProjectID uint
	UserID    uint
}

type ChangeMemberParams struct {
	ActorID   uint
	ProjectID uint
	UserID    uint
	Role      *models.MemberRole
	Position  *string
}

// authorizeOn locks the project and checks the caller may manage its
// team.
func authorizeOn(tx *gorm.DB, actorID, projectID uint, op Operation) (*models.Project, error) {
	caller, err := loadCaller(tx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	if err := caller.Authorize(op); err != nil {
		return nil, err
	}
	return lockProject(tx, projectID)
}

// activeOrNotFound returns the open row of (project, user).
func (s *MemberService) activeOrNotFound(tx *gorm.DB, projectID, userID uint) (*models.ProjectMembership, error) {
	m, err := s.core.Ledger.ActiveMembership(tx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperrors.NewNotFound("membership not found")
	}
	return m, nil
}

// Add opens a membership, or returns the open one unchanged. A lost
// insert race is retried as a read and converges on the winner's row.
func (s *MemberService) Add(ctx context.Context, p AddMemberParams) (m *models.ProjectMembership, created bool, err error) {
	defer func() { s.core.observe("add_member", err) }()

	err = runInTx(ctx, s.db, "add_member", func(tx *gorm.DB) error {
		project, err := authorizeOn(tx, p.ActorID, p.ProjectID, OpManageMembers)
		if err != nil {
			return err
		}
		m, created, err = s.core.Ledger.AddMember(tx, project, MemberSpec{UserID: p.UserID, Role: p.Role, Position: p.Position}, &p.ActorID)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.core.Metrics.History(models.ActionProjectJoined)
		logger.Info().Uint("project_id", p.ProjectID).Uint("user_id", p.UserID).Uint("actor_id", p.ActorID).Str("role", string(p.Role)).Msg("member added")
	} else {
		s.core.Metrics.Replay("add_member")
	}
	return m, created, nil
}

// Remove closes the open membership of (project, user).
func (s *MemberService) Remove(ctx context.Context, p RemoveMemberParams) (m *models.ProjectMembership, err error) {
	defer func() { s.core.observe("remove_member", err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := authorizeOn(tx, p.ActorID, p.ProjectID, OpManageMembers)
		if err != nil {
			return err
		}
		if m, err = s.activeOrNotFound(tx, project.ID, p.UserID); err != nil {
			return err
		}
		return s.core.Ledger.RemoveMember(tx, project, m, &p.ActorID)
	})
	if err != nil {
		return nil, err
	}

	s.core.Metrics.History(models.ActionProjectLeft)
	logger.Info().Uint("project_id", p.ProjectID).Uint("user_id", p.UserID).Uint("actor_id", p.ActorID).Msg("member removed")
	return m, nil
}

// Change replaces the open membership of (project, user) with one that
// carries the new role and/or position.
func (s *MemberService) Change(ctx context.Context, p ChangeMemberParams) (m *models.ProjectMembership, err error) {
	defer func() { s.core.observe("change_member", err) }()

	if p.Role == nil && p.Position == nil {
		return nil, apperrors.NewBadRequest("role or position is required")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := authorizeOn(tx, p.ActorID, p.ProjectID, OpManageMembers)
		if err != nil {
			return err
		}
		current, err := s.activeOrNotFound(tx, project.ID, p.UserID)
		if err != nil {
			return err
		}
		m, err = s.core.Ledger.ChangeMember(tx, project, current, p.Role, p.Position, &p.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.core.Metrics.History(models.ActionProjectRoleChanged)
	logger.Info().Uint("project_id", p.ProjectID).Uint("user_id", p.UserID).Uint("actor_id", p.ActorID).Str("role", string(m.Role)).Msg("member changed")
	return m, nil
}

// List returns the project's current team.
func (s *MemberService) List(ctx context.Context, actorID, projectID uint) ([]models.ProjectMembership, error) {
	var rows []models.ProjectMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, actorID, projectID)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpViewProject); err != nil {
			return err
		}
		if _, err := findProject(tx, projectID); err != nil {
			return err
		}
		rows, err = s.core.Ledger.ListActiveByProject(tx, projectID)
		return err
	})
	return rows, err
}

// Intervals returns every membership row the project ever had, newest
// first.
func (s *MemberService) Intervals(ctx context.Context, actorID, projectID uint) ([]models.ProjectMembership, error) {
	var rows []models.ProjectMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, actorID, projectID)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpViewProject); err != nil {
			return err
		}
		if _, err := findProject(tx, projectID); err != nil {
			return err
		}
		rows, err = s.core.Ledger.ListIntervals(tx, projectID)
		return err
	})
	return rows, err
}
