package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/waffice/backend/internal/config"
	"github.com/waffice/backend/internal/metrics"
	"github.com/waffice/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeClock is a settable clock shared by every component of a test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db       *gorm.DB
	clock    *fakeClock
	core     *Core
	users    *UserService
	projects *ProjectService
	members  *MemberService
}

var ctx = context.Background()

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEnvWithPolicy(t *testing.T, policy string) *testEnv {
	t.Helper()
	db := newTestDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)}
	core := NewCore(CoreOptions{
		Membership: config.MembershipConfig{AdminNoopPolicy: policy},
		Metrics:    metrics.NewRecorder(prometheus.NewRegistry()),
		Now:        clock.Now,
	})
	return &testEnv{
		db:       db,
		clock:    clock,
		core:     core,
		users:    NewUserService(db, core),
		projects: NewProjectService(db, core),
		members:  NewMemberService(db, core),
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithPolicy(t, config.AdminNoopSuppress)
}

// mkUser inserts a user directly, bypassing signup.
func (e *testEnv) mkUser(t *testing.T, name string, q models.Qualification, admin bool) *models.User {
	t.Helper()
	u := &models.User{
		Email:         name + "@waffice.dev",
		Name:          name,
		Qualification: q,
		IsAdmin:       admin,
		CreatedAt:     e.clock.Now().Unix(),
	}
	if err := e.db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

// mkProject creates a project through ProjectService as admin.
func (e *testEnv) mkProject(t *testing.T, admin *models.User, name string, members ...MemberSpec) *ProjectDetail {
	t.Helper()
	p, err := e.projects.Create(ctx, CreateProjectParams{ActorID: admin.ID, Name: name, Members: members})
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return p
}

func (e *testEnv) history(t *testing.T, userID uint, action models.HistoryAction) []models.HistoryRecord {
	t.Helper()
	var rows []models.HistoryRecord
	q := e.db.Where("user_id = ?", userID)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	if err := q.Order("id").Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	return rows
}

func (e *testEnv) leaders(t *testing.T, projectID uint) int64 {
	t.Helper()
	n, err := e.core.Leaders.CountActiveLeaders(e.db, projectID)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func (e *testEnv) intervals(t *testing.T, projectID, userID uint) []models.ProjectMembership {
	t.Helper()
	var rows []models.ProjectMembership
	if err := e.db.Where("project_id = ? AND user_id = ?", projectID, userID).Order("id").Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	return rows
}

func leader(u *models.User) MemberSpec {
	return MemberSpec{UserID: u.ID, Role: models.RoleLeader, Position: "Lead"}
}

func member(u *models.User, position string) MemberSpec {
	return MemberSpec{UserID: u.ID, Role: models.RoleMember, Position: position}
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, expected %v", err, target)
	}
}
