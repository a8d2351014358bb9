package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/content"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/course"
)

type courseTest struct {
	*TestEnv
}

// createCourseOK creates and publishes a course as the instructor. The
// caller must already be logged in as the instructor.
func (ct *courseTest) createCourseOK(t *testing.T, price int64) course.Course {
	t.Helper()

	body := map[string]any{
		"name":        "Test Course",
		"description": "A course used by the tests.",
		"price":       price,
		"currency":    "usd",
	}

	var c course.Course
	ct.postOK(t, "/courses", body, http.StatusCreated, &c)

	pub := map[string]any{"published": true}
	ct.putOK(t, "/courses/"+c.ID, pub, http.StatusOK, &c)

	if !c.Published {
		t.Fatalf("course %s did not publish", c.ID)
	}
	return c
}

func (ct *courseTest) createModuleOK(t *testing.T, courseID string) content.Module {
	t.Helper()

	body := map[string]any{
		"courseId": courseID,
		"index":    0,
		"name":     "Module One",
	}

	var m content.Module
	ct.postOK(t, "/modules", body, http.StatusCreated, &m)
	return m
}

func (ct *courseTest) createItemOK(t *testing.T, moduleID string, kind string) content.Item {
	t.Helper()

	body := map[string]any{
		"moduleId": moduleID,
		"index":    0,
		"name":     "Item " + kind,
		"kind":     kind,
		"free":     false,
	}

	var it content.Item
	ct.postOK(t, "/content", body, http.StatusCreated, &it)
	return it
}

func (ct *courseTest) listCoursesOwnedOK(t *testing.T) []course.Course {
	t.Helper()

	w, err := ct.Client().Get(ct.URL + "/courses/owned")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list owned courses: status code %s", w.Status)
	}

	var cs []course.Course
	if err := json.NewDecoder(w.Body).Decode(&cs); err != nil {
		t.Fatalf("cannot unmarshal owned courses: %v", err)
	}
	return cs
}

func (env *TestEnv) postOK(t *testing.T, path string, body any, wantStatus int, out any) {
	t.Helper()
	env.doJSON(t, http.MethodPost, path, body, wantStatus, out)
}

func (env *TestEnv) putOK(t *testing.T, path string, body any, wantStatus int, out any) {
	t.Helper()
	env.doJSON(t, http.MethodPut, path, body, wantStatus, out)
}

func (env *TestEnv) patchOK(t *testing.T, path string, body any, wantStatus int, out any) {
	t.Helper()
	env.doJSON(t, http.MethodPatch, path, body, wantStatus, out)
}

func (env *TestEnv) doJSON(t *testing.T, method string, path string, body any, wantStatus int, out any) {
	t.Helper()

	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(method, env.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != wantStatus {
		t.Fatalf("%s %s: status code %s, want %d", method, path, w.Status, wantStatus)
	}

	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("cannot unmarshal %s %s response: %v", method, path, err)
		}
	}
}

func (env *TestEnv) getJSON(t *testing.T, path string, wantStatus int, out any) {
	t.Helper()

	w, err := env.Client().Get(env.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != wantStatus {
		t.Fatalf("GET %s: status code %s, want %d", path, w.Status, wantStatus)
	}

	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("cannot unmarshal GET %s response: %v", path, err)
		}
	}
}

func TestCourse(t *testing.T) {
	env, err := NewTestEnv(t, "course_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}

	ct.Login(t, ct.InstructorEmail, ct.InstructorPass)

	c := ct.createCourseOK(t, 0)
	m := ct.createModuleOK(t, c.ID)
	_ = ct.createItemOK(t, m.ID, content.KindVideo)

	var fetched course.Course
	ct.getJSON(t, "/courses/"+c.ID, http.StatusOK, &fetched)
	if fetched.ID != c.ID {
		t.Fatalf("fetched course %s, want %s", fetched.ID, c.ID)
	}

	var modules []content.Module
	ct.getJSON(t, fmt.Sprintf("/courses/%s/modules", c.ID), http.StatusOK, &modules)
	if len(modules) != 1 {
		t.Fatalf("got %d modules, want 1", len(modules))
	}

	ct.Logout(t)

	// A student cannot create courses.
	ct.Login(t, ct.UserEmail, ct.UserPass)
	ct.postOK(t, "/courses", map[string]any{
		"name":        "Nope",
		"description": "Nope",
		"price":       0,
		"currency":    "usd",
	}, http.StatusForbidden, nil)
	ct.Logout(t)
}
