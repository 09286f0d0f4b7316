package services

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/pkg/apperrors"
)

func TestMemberAdd_TwiceReturnsSameRow(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	lead := e.mkUser(t, "lead", models.QualificationActive, false)
	u1 := e.mkUser(t, "u1", models.QualificationRegular, false)
	p := e.mkProject(t, admin, "P", leader(lead))

	first, created, err := e.members.Add(ctx, AddMemberParams{ActorID: lead.ID, ProjectID: p.ID, UserID: u1.ID, Role: models.RoleMember, Position: "Developer"})
	if err != nil || !created {
		t.Fatalf("first Add() = created %v, err %v", created, err)
	}
	second, created, err := e.members.Add(ctx, AddMemberParams{ActorID: lead.ID, ProjectID: p.ID, UserID: u1.ID, Role: models.RoleMember, Position: "Developer"})
	if err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	if created {
		t.Error("second Add() reported created")
	}
	if second.ID != first.ID {
		t.Errorf("second Add() returned row %d, expected %d", second.ID, first.ID)
	}

	if n := len(e.intervals(t, p.ID, u1.ID)); n != 1 {
		t.Errorf("membership rows = %d, expected 1", n)
	}
	if n := len(e.history(t, u1.ID, models.ActionProjectJoined)); n != 1 {
		t.Errorf("project_joined records = %d, expected 1", n)
	}
}

func TestMemberAdd_DifferentRoleStillReturnsExisting(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	u1 := e.mkUser(t, "u1", models.QualificationRegular, false)
	p := e.mkProject(t, admin, "P", leader(admin), member(u1, "Designer"))

	m, created, err := e.members.Add(ctx, AddMemberParams{ActorID: admin.ID, ProjectID: p.ID, UserID: u1.ID, Role: models.RoleLeader, Position: "Lead"})
	if err != nil {
		t.Fatal(err)
	}
	if created || m.Role != models.RoleMember || m.Position != "Designer" {
		t.Errorf("Add() = %+v created %v, expected the untouched open row", m, created)
	}
}

func TestMemberRemove_LastLeaderIsRefused(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	l := e.mkUser(t, "leader", models.QualificationActive, false)
	u1 := e.mkUser(t, "u1", models.QualificationRegular, false)
	p := e.mkProject(t, admin, "P", leader(l), member(u1, "Developer"))

	_, err := e.members.Remove(ctx, RemoveMemberParams{ActorID: admin.ID, ProjectID: p.ID, UserID: l.ID})
	expectErr(t, err, apperrors.ErrLastLeaderCannotBeRemoved)

	rows := e.intervals(t, p.ID, l.ID)
	if len(rows) != 1 || !rows[0].IsActive() {
		t.Errorf("leader row changed: %+v", rows)
	}
	if n := len(e.history(t, l.ID, models.ActionProjectLeft)); n != 0 {
		t.Errorf("project_left records = %d, expected 0", n)
	}
	if got := e.leaders(t, p.ID); got != 1 {
		t.Errorf("leaders = %d, expected 1", got)
	}
}

func TestMemberRemove_SelfIsRefused(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	l := e.mkUser(t, "leader", models.QualificationActive, false)
	l2 := e.mkUser(t, "leader2", models.QualificationActive, false)
	p := e.mkProject(t, admin, "P", leader(l), leader(l2))

	_, err := e.members.Remove(ctx, RemoveMemberParams{ActorID: l.ID, ProjectID: p.ID, UserID: l.ID})
	expectErr(t, err, apperrors.ErrCannotRemoveSelf)

	if rows := e.intervals(t, p.ID, l.ID); !rows[0].IsActive() {
		t.Error("self-removal closed the row")
	}
}

func TestMemberRemove_SoleLeaderSelfReportsLastLeader(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	l := e.mkUser(t, "leader", models.QualificationActive, false)
	p := e.mkProject(t, admin, "P", leader(l))

	_, err := e.members.Remove(ctx, RemoveMemberParams{ActorID: l.ID, ProjectID: p.ID, UserID: l.ID})
	expectErr(t, err, apperrors.ErrLastLeaderCannotBeRemoved)
}

func TestMemberRemove_ClosesRowAndRecords(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	l := e.mkUser(t, "leader", models.QualificationActive, false)
	u1 := e.mkUser(t, "u1", models.QualificationRegular, false)
	p := e.mkProject(t, admin, "P", leader(l), member(u1, "Developer"))

	e.clock.Advance(48 * time.Hour)
	m, err := e.members.Remove(ctx, RemoveMemberParams{ActorID: l.ID, ProjectID: p.ID, UserID: u1.ID})
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if m.LeftOn == nil {
		t.Fatal("returned row is still open")
	}
	if *m.LeftOn-m.JoinedOn != 2*86400 {
		t.Errorf("interval = %d..%d, expected two days", m.JoinedOn, *m.LeftOn)
	}
	if n := len(e.history(t, u1.ID, models.ActionProjectLeft)); n != 1 {
		t.Errorf("project_left records = %d, expected 1", n)
	}

	// a second remove finds nothing open
	_, err = e.members.Remove(ctx, RemoveMemberParams{ActorID: l.ID, ProjectID: p.ID, UserID: u1.ID})
	expectErr(t, err, apperrors.ErrNotFound)

	// rejoining opens a fresh interval next to the closed one
	if _, created, err := e.members.Add(ctx, AddMemberParams{ActorID: l.ID, ProjectID: p.ID, UserID: u1.ID, Role: models.RoleMember}); err != nil || !created {
		t.Fatalf("rejoin = created %v, err %v", created, err)
	}
	rows := e.intervals(t, p.ID, u1.ID)
	if len(rows) != 2 || rows[0].IsActive() || !rows[1].IsActive() {
		t.Errorf("intervals = %+v, expected one closed then one open", rows)
	}
}

func TestMemberChange_ClosesAndReopens(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	l := e.mkUser(t, "leader", models.QualificationActive, false)
	u1 := e.mkUser(t, "u1", models.QualificationRegular, false)
	p := e.mkProject(t, admin, "P", leader(l), member(u1, "Developer"))

	e.clock.Advance(24 * time.Hour)
	role := models.RoleLeader
	pos := "Tech Lead"
	m, err := e.members.Change(ctx, ChangeMemberParams{ActorID: l.ID, ProjectID: p.ID, UserID: u1.ID, Role: &role, Position: &pos})
	if err != nil {
		t.Fatalf("Change() error = %v", err)
	}
	if m.Role != models.RoleLeader || m.Position != "Tech Lead" || !m.IsActive() {
		t.Errorf("new row = %+v", m)
	}

	rows := e.intervals(t, p.ID, u1.ID)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, expected 2", len(rows))
	}
	closed, open := rows[0], rows[1]
	if closed.IsActive() || closed.Role != models.RoleMember || closed.Position != "Developer" {
		t.Errorf("closed row = %+v", closed)
	}
	if !open.IsActive() || open.ID != m.ID {
		t.Errorf("open row = %+v", open)
	}
	if *closed.LeftOn != open.JoinedOn {
		t.Errorf("left_on %d != joined_on %d", *closed.LeftOn, open.JoinedOn)
	}

	recs := e.history(t, u1.ID, models.ActionProjectRoleChanged)
	if len(recs) != 1 {
		t.Fatalf("project_role_changed records = %d, expected 1", len(recs))
	}
	var payload ProjectRoleChanged
	if err := json.Unmarshal([]byte(recs[0].PayloadJSON), &payload); err != nil {
		t.Fatal(err)
	}
	want := ProjectRoleChanged{ProjectID: p.ID, FromRole: models.RoleMember, ToRole: models.RoleLeader, FromPosition: "Developer", ToPosition: "Tech Lead"}
	if payload != want {
		t.Errorf("payload = %+v, expected %+v", payload, want)
	}
	if n := len(e.history(t, u1.ID, models.ActionProjectLeft)); n != 0 {
		t.Errorf("role change wrote %d project_left records", n)
	}
	if got := e.leaders(t, p.ID); got != 2 {
		t.Errorf("leaders = %d, expected 2", got)
	}
}

func TestMemberChange_PositionOnlyKeepsRole(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	u1 := e.mkUser(t, "u1", models.QualificationRegular, false)
	p := e.mkProject(t, admin, "P", leader(admin), member(u1, "Developer"))

	pos := "Reviewer"
	m, err := e.members.Change(ctx, ChangeMemberParams{ActorID: admin.ID, ProjectID: p.ID, UserID: u1.ID, Position: &pos})
	if err != nil {
		t.Fatal(err)
	}
	if m.Role != models.RoleMember || m.Position != "Reviewer" {
		t.Errorf("new row = %+v", m)
	}
}

func TestMemberChange_DemotingSoleLeaderFails(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	l := e.mkUser(t, "leader", models.QualificationActive, false)
	p := e.mkProject(t, admin, "P", leader(l))

	role := models.RoleMember
	_, err := e.members.Change(ctx, ChangeMemberParams{ActorID: admin.ID, ProjectID: p.ID, UserID: l.ID, Role: &role})
	expectErr(t, err, apperrors.ErrLastLeaderCannotBeRemoved)

	rows := e.intervals(t, p.ID, l.ID)
	if len(rows) != 1 || !rows[0].IsActive() || rows[0].Role != models.RoleLeader {
		t.Errorf("rows = %+v, expected the untouched leader row", rows)
	}
	if n := len(e.history(t, l.ID, models.ActionProjectRoleChanged)); n != 0 {
		t.Errorf("records = %d, expected 0", n)
	}
}

func TestMemberChange_RequiresAField(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	p := e.mkProject(t, admin, "P", leader(admin))

	_, err := e.members.Change(ctx, ChangeMemberParams{ActorID: admin.ID, ProjectID: p.ID, UserID: admin.ID})
	expectErr(t, err, apperrors.ErrBadRequest)
}

func TestMemberAdd_ConcurrentCallsConverge(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	u1 := e.mkUser(t, "u1", models.QualificationRegular, false)
	p := e.mkProject(t, admin, "P", leader(admin))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[uint]bool{}
		created int
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, c, err := e.members.Add(ctx, AddMemberParams{ActorID: admin.ID, ProjectID: p.ID, UserID: u1.ID, Role: models.RoleMember})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[m.ID] = true
			if c {
				created++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("concurrent Add errors: %v", errs)
	}
	if len(ids) != 1 || created != 1 {
		t.Errorf("distinct rows = %d, created = %d; expected 1 and 1", len(ids), created)
	}
	if n := len(e.history(t, u1.ID, models.ActionProjectJoined)); n != 1 {
		t.Errorf("project_joined records = %d, expected 1", n)
	}
}

func TestMemberOps_Authorization(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	l := e.mkUser(t, "leader", models.QualificationActive, false)
	m := e.mkUser(t, "member", models.QualificationActive, false)
	outsider := e.mkUser(t, "outsider", models.QualificationActive, false)
	assoc := e.mkUser(t, "assoc", models.QualificationAssociate, false)
	p := e.mkProject(t, admin, "P", leader(l), member(m, "Developer"))

	for _, actor := range []uint{m.ID, outsider.ID, assoc.ID} {
		_, _, err := e.members.Add(ctx, AddMemberParams{ActorID: actor, ProjectID: p.ID, UserID: outsider.ID, Role: models.RoleMember})
		expectErr(t, err, apperrors.ErrForbidden)
	}

	_, err := e.members.List(ctx, assoc.ID, p.ID)
	expectErr(t, err, apperrors.ErrForbidden)

	team, err := e.members.List(ctx, outsider.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(team) != 2 || team[0].User == nil {
		t.Errorf("team = %+v", team)
	}

	_, _, err = e.members.Add(ctx, AddMemberParams{ActorID: l.ID, ProjectID: 9999, UserID: outsider.ID, Role: models.RoleMember})
	expectErr(t, err, apperrors.ErrForbidden)

	_, _, err = e.members.Add(ctx, AddMemberParams{ActorID: admin.ID, ProjectID: 9999, UserID: outsider.ID, Role: models.RoleMember})
	expectErr(t, err, apperrors.ErrNotFound)

	_, _, err = e.members.Add(ctx, AddMemberParams{ActorID: admin.ID, ProjectID: p.ID, UserID: 9999, Role: models.RoleMember})
	expectErr(t, err, apperrors.ErrNotFound)

	_, _, err = e.members.Add(ctx, AddMemberParams{ActorID: 9999, ProjectID: p.ID, UserID: outsider.ID, Role: models.RoleMember})
	expectErr(t, err, apperrors.ErrUnauthorized)
}

func TestMemberIntervals_ListsClosedAndOpen(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mkUser(t, "admin", models.QualificationActive, true)
	u1 := e.mkUser(t, "u1", models.QualificationRegular, false)
	p := e.mkProject(t, admin, "P", leader(admin), member(u1, "Developer"))

	if _, err := e.members.Remove(ctx, RemoveMemberParams{ActorID: admin.ID, ProjectID: p.ID, UserID: u1.ID}); err != nil {
		t.Fatal(err)
	}
	rows, err := e.members.Intervals(ctx, admin.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("intervals = %d, expected 2", len(rows))
	}
	if rows[0].ID < rows[1].ID {
		t.Error("intervals not newest first")
	}
}
