package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/pkg/apperrors"
	"github.com/waffice/backend/pkg/logger"
	"gorm.io/gorm"
)

type UserService struct {
	db   *gorm.DB
	core *Core
}

func NewUserService(db *gorm.DB, core *Core) *UserService {
	return &UserService{db: db, core: core}
}

// ProfileFields are the self-service fields of a user. They never touch
// qualification or the admin flag.
type ProfileFields struct {
	Name         *string            `json:"name" binding:"omitempty,min=1,max=100"`
	Phone        *string            `json:"phone" binding:"omitempty,max=32"`
	Major        *string            `json:"major" binding:"omitempty,max=128"`
	Generation   *string            `json:"generation" binding:"omitempty,max=32"`
	Bio          *string            `json:"bio"`
	GithubHandle *string            `json:"github" binding:"omitempty,max=255"`
	AvatarKey    *string            `json:"avatar_key" binding:"omitempty,max=500"`
	Links        *[]models.UserLink `json:"links"`
}

type UpdateProfileParams struct {
	ActorID uint
	Profile ProfileFields
}

type ApproveParams struct {
	ActorID uint
	UserID  uint
	Target  models.Qualification
}

type SetAdminParams struct {
	ActorID uint
	UserID  uint
	Granted bool
}

type DeleteUserParams struct {
	ActorID uint
	UserID  uint
}

type ListUsersParams struct {
	ActorID       uint
	Qualification models.Qualification
	Page          PageQuery
}

type UserHistoryParams struct {
	ActorID uint
	UserID  uint
	Page    PageQuery
}

// Get returns a user with their links. Users may always read themselves;
// the directory needs regular tier or admin.
func (s *UserService) Get(ctx context.Context, actorID, userID uint) (*models.User, error) {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, actorID, 0)
		if err != nil {
			return err
		}
		op := OpViewUsers
		if actorID == userID {
			op = OpViewSelf
		}
		if err := caller.Authorize(op); err != nil {
			return err
		}
		user, err = findUser(tx.Preload("Links", func(db *gorm.DB) *gorm.DB { return db.Order("ord") }), userID)
		return err
	})
	return user, err
}

// List pages through live users, newest first.
func (s *UserService) List(ctx context.Context, p ListUsersParams) (Page[models.User], error) {
	var page Page[models.User]
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, 0)
		if err != nil {
			return err
		}
		op := OpViewUsers
		if p.Qualification == models.QualificationPending {
			op = OpManageUsers
		}
		if err := caller.Authorize(op); err != nil {
			return err
		}
		if p.Qualification != "" && !p.Qualification.Valid() {
			return apperrors.ErrInvalidQualification.WithMessage(fmt.Sprintf("unknown qualification %q", p.Qualification))
		}

		query := tx.Model(&models.User{}).Scopes(models.Live)
		if p.Qualification != "" {
			query = query.Where("qualification = ?", p.Qualification)
		}
		page, err = paginate(query, p.Page, func(u models.User) (int64, uint) { return u.CreatedAt, u.ID })
		return err
	})
	return page, err
}

// ListPending pages through users awaiting approval.
func (s *UserService) ListPending(ctx context.Context, actorID uint, q PageQuery) (Page[models.User], error) {
	return s.List(ctx, ListUsersParams{ActorID: actorID, Qualification: models.QualificationPending, Page: q})
}

// UpdateProfile edits the caller's own profile. No history is written.
func (s *UserService) UpdateProfile(ctx context.Context, p UpdateProfileParams) (*models.User, error) {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, 0)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpEditOwnProfile); err != nil {
			return err
		}
		if user, err = lockUser(tx, p.ActorID); err != nil {
			return err
		}

		updates := profileUpdates(p.Profile)
		if len(updates) > 0 {
			if err := tx.Model(user).Updates(updates).Error; err != nil {
				return fmt.Errorf("update profile of user %d: %w", user.ID, err)
			}
		}
		if p.Profile.Links != nil {
			if err := replaceLinks(tx, user.ID, *p.Profile.Links); err != nil {
				return err
			}
		}
		user, err = findUser(tx.Preload("Links", func(db *gorm.DB) *gorm.DB { return db.Order("ord") }), user.ID)
		return err
	})
	return user, err
}

func profileUpdates(f ProfileFields) map[string]interface{} {
	updates := map[string]interface{}{}
	set := func(col string, v *string) {
		if v != nil {
			updates[col] = strings.TrimSpace(*v)
		}
	}
	set("name", f.Name)
	set("phone", f.Phone)
	set("major", f.Major)
	set("generation", f.Generation)
	set("bio", f.Bio)
	set("github_handle", f.GithubHandle)
	set("avatar_key", f.AvatarKey)
	return updates
}

func replaceLinks(tx *gorm.DB, userID uint, links []models.UserLink) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.UserLink{}).Error; err != nil {
		return fmt.Errorf("clear links of user %d: %w", userID, err)
	}
	if len(links) == 0 {
		return nil
	}
	rows := make([]models.UserLink, 0, len(links))
	for i, l := range links {
		if strings.TrimSpace(l.URL) == "" || strings.TrimSpace(l.Kind) == "" {
			return apperrors.NewBadRequest("link kind and url are required")
		}
		rows = append(rows, models.UserLink{UserID: userID, Kind: l.Kind, Label: l.Label, URL: l.URL, Visible: l.Visible, Ord: i})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("save links of user %d: %w", userID, err)
	}
	return nil
}

// Approve moves a user to a non-pending tier. Admin only.
func (s *UserService) Approve(ctx context.Context, p ApproveParams) (user *models.User, err error) {
	defer func() { s.core.observe("approve", err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, 0)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpManageUsers); err != nil {
			return err
		}
		if user, err = lockUser(tx, p.UserID); err != nil {
			return err
		}
		return s.core.Qualification.Approve(tx, user, p.Target, &p.ActorID)
	})
	if err != nil {
		return nil, err
	}

	s.core.Metrics.History(models.ActionQualificationChanged)
	logger.Info().Uint("user_id", p.UserID).Uint("actor_id", p.ActorID).Str("qualification", string(p.Target)).Msg("user approved")
	return user, nil
}

// SetAdmin grants or revokes the admin flag. Admin only. The last admin
// cannot be revoked.
func (s *UserService) SetAdmin(ctx context.Context, p SetAdminParams) (user *models.User, err error) {
	defer func() { s.core.observe("set_admin", err) }()

	var changed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, 0)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpManageUsers); err != nil {
			return err
		}
		// The admin rows are locked before the target so that concurrent
		// revokes queue on the same set instead of counting it twice.
		var admins int64
		if !p.Granted {
			if admins, err = lockAdmins(tx); err != nil {
				return err
			}
		}
		if user, err = lockUser(tx, p.UserID); err != nil {
			return err
		}
		if !p.Granted && user.IsAdmin && admins <= 1 {
			return apperrors.NewForbidden("cannot revoke the last admin")
		}
		changed, err = s.core.Qualification.SetAdmin(tx, user, p.Granted, &p.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		action := models.ActionAdminRevoked
		if p.Granted {
			action = models.ActionAdminGranted
		}
		s.core.Metrics.History(action)
		logger.Info().Uint("user_id", p.UserID).Uint("actor_id", p.ActorID).Str("action", string(action)).Msg("admin flag changed")
	}
	return user, nil
}

// Delete tombstones a user after closing their open memberships. A user
// who is the last leader of a project cannot be deleted until a
// replacement is promoted.
func (s *UserService) Delete(ctx context.Context, p DeleteUserParams) (err error) {
	defer func() { s.core.observe("delete_user", err) }()

	var closed int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, 0)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpDeleteUser); err != nil {
			return err
		}
		if p.ActorID == p.UserID {
			return apperrors.NewForbidden("cannot delete yourself")
		}
		user, err := lockUser(tx, p.UserID)
		if err != nil {
			return err
		}

		memberships, err := s.core.Ledger.ListActiveByUser(tx, user.ID)
		if err != nil {
			return err
		}
		for i := range memberships {
			project, err := lockProject(tx, memberships[i].ProjectID)
			if err != nil {
				return err
			}
			if err := s.core.Ledger.RemoveMember(tx, project, &memberships[i], &p.ActorID); err != nil {
				return err
			}
		}
		closed = len(memberships)

		now := s.core.now().Unix()
		if err := tx.Model(user).Update("deleted_at", now).Error; err != nil {
			return fmt.Errorf("delete user %d: %w", user.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := 0; i < closed; i++ {
		s.core.Metrics.History(models.ActionProjectLeft)
	}
	logger.Info().Uint("user_id", p.UserID).Uint("actor_id", p.ActorID).Int("memberships_closed", closed).Msg("user deleted")
	return nil
}

// History pages through a user's history records. Users may read their
// own; admins may read anyone's.
func (s *UserService) History(ctx context.Context, p UserHistoryParams) (Page[models.HistoryRecord], error) {
	var page Page[models.HistoryRecord]
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, 0)
		if err != nil {
			return err
		}
		op := OpViewUserHistory
		if p.ActorID == p.UserID {
			op = OpViewSelf
		}
		if err := caller.Authorize(op); err != nil {
			return err
		}
		if _, err := findUser(tx, p.UserID); err != nil {
			return err
		}
		page, err = s.core.Audit.ListByUser(tx, p.UserID, p.Page)
		return err
	})
	return page, err
}

// Projects lists the caller's open memberships with their projects.
func (s *UserService) Projects(ctx context.Context, actorID uint) ([]models.ProjectMembership, error) {
	var rows []models.ProjectMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, actorID, 0)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpViewSelf); err != nil {
			return err
		}
		rows, err = s.core.Ledger.ListActiveByUser(tx, actorID)
		return err
	})
	return rows, err
}

// Caller returns the acting user's gate state and permitted operations.
func (s *UserService) Caller(ctx context.Context, actorID uint) (Caller, error) {
	var c Caller
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		c, err = loadCaller(tx, actorID, 0)
		return err
	})
	return c, err
}
