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

type ProjectService struct {
	db   *gorm.DB
	core *Core
}

func NewProjectService(db *gorm.DB, core *Core) *ProjectService {
	return &ProjectService{db: db, core: core}
}

// ProjectDetail is a project with its current team.
type ProjectDetail struct {
	models.Project
	Members []models.ProjectMembership `json:"members"`
}

type CreateProjectParams struct {
	ActorID     uint
	Name        string
	Description string
	Status      models.ProjectStatus
	StartDate   *int64
	EndDate     *int64
	Members     []MemberSpec
}

type UpdateProjectParams struct {
	ActorID     uint
	ProjectID   uint
	Name        *string
	Description *string
	Status      *models.ProjectStatus
	StartDate   *int64
	EndDate     *int64
}

type DeleteProjectParams struct {
	ActorID   uint
	ProjectID uint
}

type ListProjectsParams struct {
	ActorID uint
	Status  models.ProjectStatus
	Page    PageQuery
}

// Create inserts a project and its initial team in one transaction. The
// team must contain a leader.
func (s *ProjectService) Create(ctx context.Context, p CreateProjectParams) (detail *ProjectDetail, err error) {
	defer func() { s.core.observe("create_project", err) }()

	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("project name is required")
	}
	status := p.Status
	if status == "" {
		status = models.ProjectStatusActive
	}
	if !status.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid project status %q", status))
	}
	if err := validateDates(p.StartDate, p.EndDate); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, 0)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpCreateProject); err != nil {
			return err
		}
		if err := s.core.Leaders.GuardCreation(p.Members); err != nil {
			return err
		}
		seen := make(map[uint]bool, len(p.Members))
		for _, m := range p.Members {
			if seen[m.UserID] {
				return apperrors.NewBadRequest(fmt.Sprintf("user %d listed twice", m.UserID))
			}
			seen[m.UserID] = true
		}

		project := models.Project{
			Name:        name,
			Description: p.Description,
			Status:      status,
			StartDate:   p.StartDate,
			EndDate:     p.EndDate,
			CreatedBy:   &p.ActorID,
			CreatedAt:   s.core.now().Unix(),
		}
		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		for _, m := range p.Members {
			if _, _, err := s.core.Ledger.AddMember(tx, &project, m, &p.ActorID); err != nil {
				return err
			}
		}

		members, err := s.core.Ledger.ListActiveByProject(tx, project.ID)
		if err != nil {
			return err
		}
		detail = &ProjectDetail{Project: project, Members: members}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for range detail.Members {
		s.core.Metrics.History(models.ActionProjectJoined)
	}
	logger.Info().Uint("project_id", detail.ID).Uint("actor_id", p.ActorID).Int("members", len(detail.Members)).Msg("project created")
	return detail, nil
}

// Get returns a live project with its current team.
func (s *ProjectService) Get(ctx context.Context, actorID, projectID uint) (*ProjectDetail, error) {
	var detail *ProjectDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, actorID, projectID)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpViewProject); err != nil {
			return err
		}
		project, err := findProject(tx, projectID)
		if err != nil {
			return err
		}
		members, err := s.core.Ledger.ListActiveByProject(tx, projectID)
		if err != nil {
			return err
		}
		detail = &ProjectDetail{Project: *project, Members: members}
		return nil
	})
	return detail, err
}

// List pages through live projects, newest first.
func (s *ProjectService) List(ctx context.Context, p ListProjectsParams) (Page[models.Project], error) {
	var page Page[models.Project]
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, 0)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpViewProject); err != nil {
			return err
		}
		if p.Status != "" && !p.Status.Valid() {
			return apperrors.NewBadRequest(fmt.Sprintf("invalid project status %q", p.Status))
		}

		query := tx.Model(&models.Project{}).Scopes(models.Live)
		if p.Status != "" {
			query = query.Where("status = ?", p.Status)
		}
		page, err = paginate(query, p.Page, func(pr models.Project) (int64, uint) { return pr.CreatedAt, pr.ID })
		return err
	})
	return page, err
}

// Update edits project fields. Leader of the project or admin. Project
// edits are not membership transitions and write no history.
func (s *ProjectService) Update(ctx context.Context, p UpdateProjectParams) (project *models.Project, err error) {
	defer func() { s.core.observe("update_project", err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, p.ProjectID)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpUpdateProject); err != nil {
			return err
		}
		if project, err = lockProject(tx, p.ProjectID); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if p.Name != nil {
			name := strings.TrimSpace(*p.Name)
			if name == "" {
				return apperrors.NewBadRequest("project name is required")
			}
			updates["name"] = name
		}
		if p.Description != nil {
			updates["description"] = *p.Description
		}
		if p.Status != nil {
			if !p.Status.Valid() {
				return apperrors.NewBadRequest(fmt.Sprintf("invalid project status %q", *p.Status))
			}
			updates["status"] = *p.Status
		}
		start, end := project.StartDate, project.EndDate
		if p.StartDate != nil {
			updates["start_date"] = *p.StartDate
			start = p.StartDate
		}
		if p.EndDate != nil {
			updates["end_date"] = *p.EndDate
			end = p.EndDate
		}
		if err := validateDates(start, end); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(project).Updates(updates).Error; err != nil {
			return fmt.Errorf("update project %d: %w", project.ID, err)
		}
		project, err = findProject(tx, p.ProjectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Delete tombstones a project and closes its whole team, writing a
// project_left record per member.
func (s *ProjectService) Delete(ctx context.Context, p DeleteProjectParams) (err error) {
	defer func() { s.core.observe("delete_project", err) }()

	var closed []models.ProjectMembership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := loadCaller(tx, p.ActorID, 0)
		if err != nil {
			return err
		}
		if err := caller.Authorize(OpDeleteProject); err != nil {
			return err
		}
		project, err := lockProject(tx, p.ProjectID)
		if err != nil {
			return err
		}
		if closed, err = s.core.Ledger.Disband(tx, project, &p.ActorID); err != nil {
			return err
		}
		if err := tx.Model(project).Update("deleted_at", s.core.now().Unix()).Error; err != nil {
			return fmt.Errorf("delete project %d: %w", project.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for range closed {
		s.core.Metrics.History(models.ActionProjectLeft)
	}
	logger.Info().Uint("project_id", p.ProjectID).Uint("actor_id", p.ActorID).Int("members_closed", len(closed)).Msg("project deleted")
	return nil
}

func findProject(tx *gorm.DB, projectID uint) (*models.Project, error) {
	var rows []models.Project
	if err := tx.Scopes(models.Live).Where("id = ?", projectID).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load project %d: %w", projectID, err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFound("project not found")
	}
	return &rows[0], nil
}

func validateDates(start, end *int64) error {
	if start != nil && end != nil && *end < *start {
		return apperrors.NewBadRequest("end date is before start date")
	}
	return nil
}
