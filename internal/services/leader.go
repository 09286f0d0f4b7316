package services

import (
	"fmt"

	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/pkg/apperrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaderInvariant keeps every live project led by at least one active
// leader. Its guards read inside the transaction that performs the
// mutation; callers hold the project row lock (see lockProject).
type LeaderInvariant struct{}

// CountActiveLeaders counts the open leader rows of a project with a
// locking read. Under MySQL REPEATABLE READ a plain read would reuse the
// snapshot taken before the project lock was granted and miss a leader
// closed by the previous lock holder; a locking read sees the latest
// committed rows. Postgres does not allow FOR UPDATE with aggregates, so
// the ids are selected and counted here.
func (LeaderInvariant) CountActiveLeaders(tx *gorm.DB, projectID uint) (int64, error) {
	var ids []uint
	err := tx.Model(&models.ProjectMembership{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(models.ActiveMemberships).
		Where("project_id = ? AND role = ?", projectID, models.RoleLeader).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("count leaders of project %d: %w", projectID, err)
	}
	return int64(len(ids)), nil
}

// GuardRemoval rejects closing m when it is the project's last leader,
// then rejects a member closing their own row.
func (l LeaderInvariant) GuardRemoval(tx *gorm.DB, m *models.ProjectMembership, actorID *uint) error {
	if err := l.guardLastLeader(tx, m); err != nil {
		return err
	}
	if actorID != nil && *actorID == m.UserID {
		return apperrors.ErrCannotRemoveSelf
	}
	return nil
}

// GuardDemotion rejects turning the last leader into a member.
func (l LeaderInvariant) GuardDemotion(tx *gorm.DB, m *models.ProjectMembership, newRole models.MemberRole) error {
	if newRole == models.RoleLeader {
		return nil
	}
	return l.guardLastLeader(tx, m)
}

func (l LeaderInvariant) guardLastLeader(tx *gorm.DB, m *models.ProjectMembership) error {
	if m.Role != models.RoleLeader {
		return nil
	}
	n, err := l.CountActiveLeaders(tx, m.ProjectID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return apperrors.ErrLastLeaderCannotBeRemoved
	}
	return nil
}

// GuardCreation rejects an initial team without a leader.
func (LeaderInvariant) GuardCreation(members []MemberSpec) error {
	for _, m := range members {
		if m.Role == models.RoleLeader {
			return nil
		}
	}
	return apperrors.ErrNoLeaderInProject
}
