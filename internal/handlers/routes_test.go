package handlers

import (
	"net/http"
	"strings"
	"testing"
)

func TestRegister_MountsEveryRoute(t *testing.T) {
	s := newTestServer(t)

	mounted := map[string]bool{}
	for _, r := range s.router.Routes() {
		mounted[r.Method+" "+r.Path] = true
	}

	expected := []string{
		"POST /api/auth/signup",
		"GET /api/users/me",
		"PATCH /api/users/me",
		"GET /api/users/me/history",
		"GET /api/users/me/projects",
		"POST /api/uploads/presign",
		"GET /api/users",
		"GET /api/users/pending",
		"GET /api/users/:id",
		"GET /api/users/:id/history",
		"POST /api/users/:id/approve",
		"POST /api/users/:id/admin",
		"DELETE /api/users/:id",
		"GET /api/projects",
		"GET /api/projects/:id",
		"POST /api/projects",
		"PATCH /api/projects/:id",
		"DELETE /api/projects/:id",
		"GET /api/projects/:id/members",
		"GET /api/projects/:id/members/history",
		"POST /api/projects/:id/members",
		"PATCH /api/projects/:id/members/:userId",
		"DELETE /api/projects/:id/members/:userId",
	}
	for _, route := range expected {
		if !mounted[route] {
			t.Errorf("route %s not mounted", route)
		}
	}
}

func TestRegister_OnlySignupIsPublic(t *testing.T) {
	s := newTestServer(t)

	for _, r := range s.router.Routes() {
		if r.Path == "/api/auth/signup" || r.Path == "/health" || r.Path == "/metrics" {
			continue
		}
		path := strings.NewReplacer(":userId", "2", ":id", "1").Replace(r.Path)
		code, _ := s.do(t, r.Method, path, "", nil)
		if code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, expected 401", r.Method, path, code)
		}
	}
}
