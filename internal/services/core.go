package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waffice/backend/internal/config"
	"github.com/waffice/backend/internal/metrics"
	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/pkg/apperrors"
	"github.com/waffice/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// conflictRetries bounds how often an operation is re-run after losing a
// unique-index race.
const conflictRetries = 3

// Core wires the membership components together. It holds no request
// state; each service method opens its own transaction and hands it down.
type Core struct {
	Audit         *AuditLog
	Qualification *QualificationGate
	Ledger        *MembershipLedger
	Leaders       LeaderInvariant
	Metrics       *metrics.Recorder
	now           func() time.Time
}

// CoreOptions configures NewCore. Zero values fall back to defaults.
type CoreOptions struct {
	Membership config.MembershipConfig
	Metrics    *metrics.Recorder
	Now        func() time.Time
}

func NewCore(opts CoreOptions) *Core {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	audit := NewAuditLog(now)
	return &Core{
		Audit:         audit,
		Qualification: NewQualificationGate(audit, opts.Membership.AdminNoopPolicy),
		Ledger:        NewMembershipLedger(audit, now),
		Metrics:       opts.Metrics,
		now:           now,
	}
}

// runInTx runs fn in one transaction on db. ErrConflict from fn means a
// concurrent writer won a unique-index race; fn is re-run in a fresh
// transaction, where its own existence check sees the winner's row.
// After conflictRetries losses the error is returned as an internal one.
func runInTx(ctx context.Context, db *gorm.DB, op string, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= conflictRetries; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, apperrors.ErrConflict) {
			return err
		}
		logger.Debug().Str("operation", op).Int("attempt", attempt).Msg("unique conflict, retrying as read")
	}
	// Conflict never reaches callers; a race that keeps losing is a fault.
	return fmt.Errorf("%s: unique conflict after %d attempts: %v", op, conflictRetries, err)
}

// observe records the outcome of op on the metrics recorder.
func (c *Core) observe(op string, err error) {
	switch {
	case err == nil:
		c.Metrics.Operation(op, metrics.OutcomeOK)
	case isAppError(err):
		c.Metrics.Operation(op, metrics.OutcomeRejected)
	default:
		c.Metrics.Operation(op, metrics.OutcomeError)
	}
}

func isAppError(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr)
}

// loadCaller reads the acting user inside tx. projectID 0 means the
// operation targets no project.
func loadCaller(tx *gorm.DB, actorID, projectID uint) (Caller, error) {
	var u models.User
	err := tx.Scopes(models.Live).First(&u, actorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Caller{}, apperrors.ErrUnauthorized
	}
	if err != nil {
		return Caller{}, fmt.Errorf("load caller %d: %w", actorID, err)
	}

	c := Caller{UserID: u.ID, Qualification: u.Qualification, IsAdmin: u.IsAdmin, ProjectRole: ProjectRoleNone}
	if projectID == 0 {
		return c, nil
	}

	var rows []models.ProjectMembership
	err = tx.Scopes(models.ActiveMemberships).
		Where("project_id = ? AND user_id = ?", projectID, actorID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return Caller{}, fmt.Errorf("load caller membership: %w", err)
	}
	if len(rows) == 1 {
		c.ProjectRole = ProjectRole(rows[0].Role)
	}
	return c, nil
}

// findUser loads a live user.
func findUser(tx *gorm.DB, userID uint) (*models.User, error) {
	return loadUser(tx, userID)
}

// lockUser loads a live user and holds its row lock until commit.
func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	return loadUser(tx.Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

// lockAdmins counts the live admins and holds their row locks until
// commit.
func lockAdmins(tx *gorm.DB) (int64, error) {
	var ids []uint
	err := tx.Model(&models.User{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(models.Live).
		Where("is_admin = ?", true).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return int64(len(ids)), nil
}

func loadUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var u models.User
	err := tx.Scopes(models.Live).First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return &u, nil
}

func ptr[T any](v T) *T { return &v }
