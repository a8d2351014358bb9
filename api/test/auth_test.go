package test

import (
	"net/http"
	"testing"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/user"
)

type authTest struct {
	*TestEnv
}

func TestAuth(t *testing.T) {
	env, err := NewTestEnv(t, "auth_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	at := &authTest{env}

	signup := map[string]any{
		"name":            "New User",
		"email":           "new@test.io",
		"password":        "password1234",
		"passwordConfirm": "password1234",
	}

	var u user.User
	at.postOK(t, "/auth/signup", signup, http.StatusCreated, &u)
	if u.Role != claims.RoleUser {
		t.Fatalf("signup role = %s, want %s", u.Role, claims.RoleUser)
	}

	// Signup logs the user in when activation is not required.
	var current user.User
	at.getJSON(t, "/users/current", http.StatusOK, &current)
	if current.ID != u.ID {
		t.Fatalf("current user = %s, want %s", current.ID, u.ID)
	}
	at.Logout(t)

	// The email is taken now.
	at.postOK(t, "/auth/signup", signup, http.StatusConflict, nil)

	// Wrong password.
	at.postOK(t, "/auth/login", map[string]any{
		"email":    "new@test.io",
		"password": "wrong-password",
	}, http.StatusUnauthorized, nil)

	// Unknown email gets the same answer as a wrong password.
	at.postOK(t, "/auth/login", map[string]any{
		"email":    "nobody@test.io",
		"password": "password1234",
	}, http.StatusUnauthorized, nil)

	// Unauthenticated requests to gated routes are rejected.
	at.getJSON(t, "/users/current", http.StatusUnauthorized, nil)

	at.Login(t, "new@test.io", "password1234")
	at.Logout(t)
}
