package services

import (
	"fmt"

	"github.com/waffice/backend/internal/config"
	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/pkg/apperrors"
	"gorm.io/gorm"
)

// QualificationGate applies tier and admin-flag transitions. Profile
// edits never pass through here.
type QualificationGate struct {
	audit      *AuditLog
	noopPolicy string
}

func NewQualificationGate(audit *AuditLog, noopPolicy string) *QualificationGate {
	if noopPolicy == "" {
		noopPolicy = config.AdminNoopSuppress
	}
	return &QualificationGate{audit: audit, noopPolicy: noopPolicy}
}

// Approve moves user to target. Any tier except pending is a legal
// target, whatever the current tier.
func (g *QualificationGate) Approve(tx *gorm.DB, user *models.User, target models.Qualification, actorID *uint) error {
	if target == models.QualificationPending {
		return apperrors.ErrInvalidQualification
	}
	if !target.Valid() {
		return apperrors.ErrInvalidQualification.WithMessage(fmt.Sprintf("unknown qualification %q", target))
	}

	from := user.Qualification
	if err := tx.Model(user).Update("qualification", target).Error; err != nil {
		return fmt.Errorf("update qualification of user %d: %w", user.ID, err)
	}
	user.Qualification = target

	_, err := g.audit.Append(tx, user.ID, actorID, QualificationChanged{From: from, To: target})
	return err
}

// SetAdmin sets the admin flag to granted. When the flag already has
// that value the configured no-op policy decides the outcome; changed
// reports whether a record was written.
func (g *QualificationGate) SetAdmin(tx *gorm.DB, user *models.User, granted bool, actorID *uint) (changed bool, err error) {
	if user.IsAdmin == granted {
		switch g.noopPolicy {
		case config.AdminNoopReject:
			return false, apperrors.ErrRedundantChange
		case config.AdminNoopSuppress:
			return false, nil
		}
	} else {
		if err := tx.Model(user).Update("is_admin", granted).Error; err != nil {
			return false, fmt.Errorf("update admin flag of user %d: %w", user.ID, err)
		}
		user.IsAdmin = granted
	}

	var payload HistoryPayload = AdminRevoked{}
	if granted {
		payload = AdminGranted{}
	}
	if _, err := g.audit.Append(tx, user.ID, actorID, payload); err != nil {
		return false, err
	}
	return true, nil
}
