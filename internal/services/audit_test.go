package services

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/waffice/backend/internal/models"
)

func TestAuditLog_AppendWritesFixedShape(t *testing.T) {
	e := newTestEnv(t)
	u := e.mkUser(t, "u1", models.QualificationPending, false)
	actor := uint(99)

	rec, err := e.core.Audit.Append(e.db, u.ID, &actor, ProjectJoined{ProjectID: 3, ProjectName: "Site", Role: models.RoleMember, Position: "FE"})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if rec.Action != models.ActionProjectJoined {
		t.Errorf("Action = %q", rec.Action)
	}
	if rec.CreatedAt != e.clock.Now().Unix() {
		t.Errorf("CreatedAt = %d, expected %d", rec.CreatedAt, e.clock.Now().Unix())
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(rec.PayloadJSON), &payload); err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{"project_id": float64(3), "project_name": "Site", "role": "member", "position": "FE"}
	if !reflect.DeepEqual(payload, want) {
		t.Errorf("payload = %v, expected %v", payload, want)
	}
}

func TestAuditLog_EmptyPayloadActions(t *testing.T) {
	e := newTestEnv(t)
	u := e.mkUser(t, "u1", models.QualificationRegular, false)

	for _, p := range []HistoryPayload{AdminGranted{}, AdminRevoked{}} {
		rec, err := e.core.Audit.Append(e.db, u.ID, nil, p)
		if err != nil {
			t.Fatalf("Append(%T) error = %v", p, err)
		}
		if rec.PayloadJSON != "{}" {
			t.Errorf("%s payload = %s, expected {}", rec.Action, rec.PayloadJSON)
		}
		if rec.ActorID != nil {
			t.Error("system action should have no actor")
		}
	}
}

func TestAuditLog_RejectsMalformedPayload(t *testing.T) {
	e := newTestEnv(t)
	u := e.mkUser(t, "u1", models.QualificationRegular, false)

	bad := []HistoryPayload{
		nil,
		QualificationChanged{From: "pending", To: "gold"},
		ProjectJoined{ProjectID: 0, Role: models.RoleMember},
		ProjectJoined{ProjectID: 1, Role: "owner"},
		ProjectLeft{},
		ProjectRoleChanged{ProjectID: 1, FromRole: models.RoleLeader, ToRole: ""},
	}
	for _, p := range bad {
		if _, err := e.core.Audit.Append(e.db, u.ID, nil, p); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Append(%#v) error = %v, expected ErrMalformedPayload", p, err)
		}
	}
	if n := len(e.history(t, u.ID, "")); n != 0 {
		t.Errorf("malformed payloads wrote %d records", n)
	}
}

func TestAuditLog_ListByUserNewestFirstAndStable(t *testing.T) {
	e := newTestEnv(t)
	u := e.mkUser(t, "u1", models.QualificationPending, false)
	other := e.mkUser(t, "u2", models.QualificationPending, false)

	for i := 0; i < 3; i++ {
		if _, err := e.core.Audit.Append(e.db, u.ID, nil, AdminGranted{}); err != nil {
			t.Fatal(err)
		}
		e.clock.Advance(time.Second)
	}
	if _, err := e.core.Audit.Append(e.db, other.ID, nil, AdminGranted{}); err != nil {
		t.Fatal(err)
	}

	first, err := e.core.Audit.ListByUser(e.db, u.ID, PageQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Items) != 3 {
		t.Fatalf("items = %d, expected 3", len(first.Items))
	}
	for i := 1; i < len(first.Items); i++ {
		if first.Items[i-1].CreatedAt <= first.Items[i].CreatedAt {
			t.Errorf("items not newest first: %d then %d", first.Items[i-1].CreatedAt, first.Items[i].CreatedAt)
		}
	}
	if first.NextCursor != nil {
		t.Error("short page should omit next cursor")
	}

	// records never change across reads
	second, _ := e.core.Audit.ListByUser(e.db, u.ID, PageQuery{})
	for i := range first.Items {
		a, b := first.Items[i], second.Items[i]
		if a.ID != b.ID || a.Action != b.Action || a.PayloadJSON != b.PayloadJSON || a.CreatedAt != b.CreatedAt {
			t.Errorf("record %d changed between reads: %+v vs %+v", a.ID, a, b)
		}
	}
}
