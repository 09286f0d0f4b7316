package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/pkg/apperrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemberSpec is one entry of a team: who, in which role, doing what.
type MemberSpec struct {
	UserID   uint              `json:"user_id" binding:"required"`
	Role     models.MemberRole `json:"role" binding:"required,oneof=leader member"`
	Position string            `json:"position" binding:"max=50"`
}

// MembershipLedger manages membership intervals. Rows are opened and
// closed, never edited otherwise. Every method runs in the transaction
// it is handed and writes its history records there.
type MembershipLedger struct {
	audit   *AuditLog
	leaders LeaderInvariant
	now     func() time.Time
}

func NewMembershipLedger(audit *AuditLog, now func() time.Time) *MembershipLedger {
	if now == nil {
		now = time.Now
	}
	return &MembershipLedger{audit: audit, now: now}
}

// today is the start of the current UTC day in epoch seconds.
func (l *MembershipLedger) today() int64 {
	return l.now().UTC().Truncate(24 * time.Hour).Unix()
}

// lockProject loads a live project and takes its row lock, which every
// membership mutation of that project holds until commit. sqlite ignores
// the clause; its single writer serializes instead.
func lockProject(tx *gorm.DB, projectID uint) (*models.Project, error) {
	var p models.Project
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(models.Live).
		First(&p, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load project %d: %w", projectID, err)
	}
	return &p, nil
}

// ActiveMembership returns the open row for (projectID, userID), or nil.
func (l *MembershipLedger) ActiveMembership(tx *gorm.DB, projectID, userID uint) (*models.ProjectMembership, error) {
	var rows []models.ProjectMembership
	err := tx.Scopes(models.ActiveMemberships).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// AddMember opens a membership unless one is already open, in which case
// the open row is returned untouched and created is false. Losing an
// insert race yields ErrConflict; the caller retries in a fresh
// transaction, where the winner's row is found.
func (l *MembershipLedger) AddMember(tx *gorm.DB, project *models.Project, spec MemberSpec, actorID *uint) (m *models.ProjectMembership, created bool, err error) {
	if !spec.Role.Valid() {
		return nil, false, apperrors.NewBadRequest("invalid member role")
	}
	if err := requireLiveUser(tx, spec.UserID); err != nil {
		return nil, false, err
	}

	existing, err := l.ActiveMembership(tx, project.ID, spec.UserID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	m, err = l.open(tx, project.ID, spec)
	if err != nil {
		return nil, false, err
	}
	_, err = l.audit.Append(tx, spec.UserID, actorID, ProjectJoined{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Role:        spec.Role,
		Position:    spec.Position,
	})
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// RemoveMember closes m after the leader and self-removal guards pass.
func (l *MembershipLedger) RemoveMember(tx *gorm.DB, project *models.Project, m *models.ProjectMembership, actorID *uint) error {
	if err := l.leaders.GuardRemoval(tx, m, actorID); err != nil {
		return err
	}
	if err := l.close(tx, m); err != nil {
		return err
	}
	_, err := l.audit.Append(tx, m.UserID, actorID, ProjectLeft{ProjectID: project.ID, ProjectName: project.Name})
	return err
}

// ChangeMember closes m and opens its successor carrying the merged role
// and position. Nil fields keep m's values.
func (l *MembershipLedger) ChangeMember(tx *gorm.DB, project *models.Project, m *models.ProjectMembership, newRole *models.MemberRole, newPosition *string, actorID *uint) (*models.ProjectMembership, error) {
	next := MemberSpec{UserID: m.UserID, Role: m.Role, Position: m.Position}
	if newRole != nil {
		if !newRole.Valid() {
			return nil, apperrors.NewBadRequest("invalid member role")
		}
		next.Role = *newRole
	}
	if newPosition != nil {
		next.Position = *newPosition
	}

	if err := l.leaders.GuardDemotion(tx, m, next.Role); err != nil {
		return nil, err
	}
	if err := l.close(tx, m); err != nil {
		return nil, err
	}
	opened, err := l.open(tx, project.ID, next)
	if err != nil {
		return nil, err
	}
	_, err = l.audit.Append(tx, m.UserID, actorID, ProjectRoleChanged{
		ProjectID:    project.ID,
		FromRole:     m.Role,
		ToRole:       next.Role,
		FromPosition: m.Position,
		ToPosition:   next.Position,
	})
	if err != nil {
		return nil, err
	}
	return opened, nil
}

// Disband closes every open row of project without the leader guard.
// Only project teardown uses it.
func (l *MembershipLedger) Disband(tx *gorm.DB, project *models.Project, actorID *uint) ([]models.ProjectMembership, error) {
	rows, err := l.ListActiveByProject(tx, project.ID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if err := l.close(tx, &rows[i]); err != nil {
			return nil, err
		}
		if _, err := l.audit.Append(tx, rows[i].UserID, actorID, ProjectLeft{ProjectID: project.ID, ProjectName: project.Name}); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// ListActiveByProject returns the open rows of a project with users
// loaded, ordered by id.
func (l *MembershipLedger) ListActiveByProject(tx *gorm.DB, projectID uint) ([]models.ProjectMembership, error) {
	rows := []models.ProjectMembership{}
	err := tx.Scopes(models.ActiveMemberships).
		Where("project_id = ?", projectID).
		Preload("User").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list members of project %d: %w", projectID, err)
	}
	return rows, nil
}

// ListActiveByUser returns a user's open rows on live projects, with the
// project loaded, ordered by id.
func (l *MembershipLedger) ListActiveByUser(tx *gorm.DB, userID uint) ([]models.ProjectMembership, error) {
	var rows []models.ProjectMembership
	err := tx.Scopes(models.ActiveMemberships).
		Where("user_id = ?", userID).
		Preload("Project", models.Live).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list memberships of user %d: %w", userID, err)
	}
	live := rows[:0]
	for _, m := range rows {
		if m.Project != nil {
			live = append(live, m)
		}
	}
	return live, nil
}

// ListIntervals returns every row of a project, open or closed, newest
// first.
func (l *MembershipLedger) ListIntervals(tx *gorm.DB, projectID uint) ([]models.ProjectMembership, error) {
	rows := []models.ProjectMembership{}
	err := tx.Where("project_id = ?", projectID).
		Preload("User").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list intervals of project %d: %w", projectID, err)
	}
	return rows, nil
}

func (l *MembershipLedger) open(tx *gorm.DB, projectID uint, spec MemberSpec) (*models.ProjectMembership, error) {
	m := &models.ProjectMembership{
		ProjectID: projectID,
		UserID:    spec.UserID,
		Slot:      models.OpenSlot(),
		Role:      spec.Role,
		Position:  spec.Position,
		JoinedOn:  l.today(),
		CreatedAt: l.now().Unix(),
	}
	if err := tx.Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("open membership: %w", err)
	}
	return m, nil
}

func (l *MembershipLedger) close(tx *gorm.DB, m *models.ProjectMembership) error {
	left := l.today()
	res := tx.Model(&models.ProjectMembership{}).
		Where("id = ? AND left_on IS NULL", m.ID).
		Updates(map[string]interface{}{"left_on": left, "open_slot": nil})
	if res.Error != nil {
		return fmt.Errorf("close membership %d: %w", m.ID, res.Error)
	}
	if res.RowsAffected != 1 {
		return apperrors.NewNotFound("membership not found")
	}
	m.LeftOn = &left
	m.Slot = nil
	return nil
}

func requireLiveUser(tx *gorm.DB, userID uint) error {
	var n int64
	if err := tx.Model(&models.User{}).Scopes(models.Live).Where("id = ?", userID).Count(&n).Error; err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	if n == 0 {
		return apperrors.NewNotFound("user not found")
	}
	return nil
}
