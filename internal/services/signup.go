package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/pkg/apperrors"
	"github.com/waffice/backend/pkg/logger"
	"gorm.io/gorm"
)

// SignupParams carries a verified identity from the OAuth exchange.
// ExternalID may be nil when the provider supplied only an email.
type SignupParams struct {
	ExternalID *string
	Email      string
	Name       string
	Profile    ProfileFields
}

// Signup returns the user for the given identity, creating a pending one
// on first sight. The key is the external id, falling back to email.
// Repeating the call returns the same user and never duplicates it;
// created is true only for the call that inserted the row.
func (s *UserService) Signup(ctx context.Context, p SignupParams) (user *models.User, created bool, err error) {
	defer func() { s.core.observe("signup", err) }()

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, false, apperrors.NewBadRequest("email is required")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = email
	}
	var externalID *string
	if p.ExternalID != nil && strings.TrimSpace(*p.ExternalID) != "" {
		externalID = ptr(strings.TrimSpace(*p.ExternalID))
	}

	err = runInTx(ctx, s.db, "signup", func(tx *gorm.DB) error {
		existing, err := findSignupKey(tx, externalID, email)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.DeletedAt != nil {
				return apperrors.NewForbidden("account has been deactivated")
			}
			if existing.ExternalID == nil && externalID != nil {
				if err := tx.Model(existing).Update("external_id", *externalID).Error; err != nil {
					return signupWriteError(err)
				}
				existing.ExternalID = externalID
			} else if externalID != nil && *existing.ExternalID != *externalID {
				logger.Warn().Uint("user_id", existing.ID).Msg("signup email already linked to another identity")
			}
			user, created = existing, false
			return nil
		}

		u := &models.User{
			ExternalID:    externalID,
			Email:         email,
			Name:          name,
			Qualification: models.QualificationPending,
			CreatedAt:     s.core.now().Unix(),
		}
		applyProfile(u, p.Profile)
		if err := tx.Create(u).Error; err != nil {
			return signupWriteError(err)
		}
		if p.Profile.Links != nil {
			if err := replaceLinks(tx, u.ID, *p.Profile.Links); err != nil {
				return err
			}
		}
		user, created = u, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		logger.Info().Uint("user_id", user.ID).Msg("user signed up")
	} else {
		s.core.Metrics.Replay("signup")
	}
	return user, created, nil
}

// findSignupKey looks the identity up including tombstoned rows, since
// the unique indexes cover them too.
func findSignupKey(tx *gorm.DB, externalID *string, email string) (*models.User, error) {
	var rows []models.User
	if externalID != nil {
		if err := tx.Where("external_id = ?", *externalID).Limit(1).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("find user by identity: %w", err)
		}
		if len(rows) == 1 {
			return &rows[0], nil
		}
	}
	if err := tx.Where("email = ?", email).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if len(rows) == 1 {
		return &rows[0], nil
	}
	return nil, nil
}

func signupWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrConflict
	}
	return fmt.Errorf("signup: %w", err)
}

func applyProfile(u *models.User, f ProfileFields) {
	for col, v := range profileUpdates(f) {
		s := v.(string)
		switch col {
		case "name":
			if s != "" {
				u.Name = s
			}
		case "phone":
			u.Phone = s
		case "major":
			u.Major = s
		case "generation":
			u.Generation = s
		case "bio":
			u.Bio = s
		case "github_handle":
			u.GithubHandle = s
		case "avatar_key":
			u.AvatarKey = s
		}
	}
}
