package services

import (
	"errors"
	"fmt"

	"github.com/waffice/backend/internal/models"
)

// ErrMalformedPayload marks a history payload that does not satisfy its
// action's schema. It is a programming error, never a caller error.
var ErrMalformedPayload = errors.New("malformed history payload")

// HistoryPayload is the fixed-shape body of one history action. The
// action is derived from the payload type, so a record can never carry a
// payload of the wrong kind.
type HistoryPayload interface {
	Action() models.HistoryAction
	validate() error
}

type QualificationChanged struct {
	From models.Qualification `json:"from"`
	To   models.Qualification `json:"to"`
}

func (QualificationChanged) Action() models.HistoryAction { return models.ActionQualificationChanged }

func (p QualificationChanged) validate() error {
	if !p.From.Valid() || !p.To.Valid() {
		return fmt.Errorf("%w: qualification_changed %q -> %q", ErrMalformedPayload, p.From, p.To)
	}
	return nil
}

type AdminGranted struct{}

func (AdminGranted) Action() models.HistoryAction { return models.ActionAdminGranted }
func (AdminGranted) validate() error              { return nil }

type AdminRevoked struct{}

func (AdminRevoked) Action() models.HistoryAction { return models.ActionAdminRevoked }
func (AdminRevoked) validate() error              { return nil }

type ProjectJoined struct {
	ProjectID   uint              `json:"project_id"`
	ProjectName string            `json:"project_name"`
	Role        models.MemberRole `json:"role"`
	Position    string            `json:"position"`
}

func (ProjectJoined) Action() models.HistoryAction { return models.ActionProjectJoined }

func (p ProjectJoined) validate() error {
	if p.ProjectID == 0 || !p.Role.Valid() {
		return fmt.Errorf("%w: project_joined project=%d role=%q", ErrMalformedPayload, p.ProjectID, p.Role)
	}
	return nil
}

type ProjectLeft struct {
	ProjectID   uint   `json:"project_id"`
	ProjectName string `json:"project_name"`
}

func (ProjectLeft) Action() models.HistoryAction { return models.ActionProjectLeft }

func (p ProjectLeft) validate() error {
	if p.ProjectID == 0 {
		return fmt.Errorf("%w: project_left without project", ErrMalformedPayload)
	}
	return nil
}

type ProjectRoleChanged struct {
	ProjectID    uint              `json:"project_id"`
	FromRole     models.MemberRole `json:"from_role"`
	ToRole       models.MemberRole `json:"to_role"`
	FromPosition string            `json:"from_position"`
	ToPosition   string            `json:"to_position"`
}

func (ProjectRoleChanged) Action() models.HistoryAction { return models.ActionProjectRoleChanged }

func (p ProjectRoleChanged) validate() error {
	if p.ProjectID == 0 || !p.FromRole.Valid() || !p.ToRole.Valid() {
		return fmt.Errorf("%w: project_role_changed project=%d %q -> %q", ErrMalformedPayload, p.ProjectID, p.FromRole, p.ToRole)
	}
	return nil
}
