package test

import (
	"net/http"
	"testing"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/enrollment"
)

type enrollmentTest struct {
	*TestEnv
}

func (et *enrollmentTest) enrollOK(t *testing.T, courseID string) enrollment.Enrollment {
	t.Helper()

	var e enrollment.Enrollment
	et.postOK(t, "/enrollments", map[string]any{"courseId": courseID}, http.StatusCreated, &e)

	if e.Status != enrollment.Active {
		t.Fatalf("fresh enrollment status = %s, want %s", e.Status, enrollment.Active)
	}
	return e
}

func (et *enrollmentTest) checkOK(t *testing.T, courseID string) enrollment.CheckResult {
	t.Helper()

	var res enrollment.CheckResult
	et.getJSON(t, "/enrollments/check/"+courseID, http.StatusOK, &res)
	return res
}

func TestEnrollment(t *testing.T) {
	env, err := NewTestEnv(t, "enrollment_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	et := &enrollmentTest{env}

	ct.Login(t, ct.InstructorEmail, ct.InstructorPass)
	free := ct.createCourseOK(t, 0)
	paid := ct.createCourseOK(t, 10000)
	ct.Logout(t)

	et.Login(t, et.UserEmail, et.UserPass)

	if res := et.checkOK(t, free.ID); res.IsEnrolled {
		t.Fatal("student reported enrolled before enrolling")
	}

	e := et.enrollOK(t, free.ID)

	res := et.checkOK(t, free.ID)
	if !res.IsEnrolled || res.Enrollment == nil || res.Enrollment.ID != e.ID {
		t.Fatal("check does not reflect the new enrollment")
	}

	// Enrolling twice conflicts.
	et.postOK(t, "/enrollments", map[string]any{"courseId": free.ID}, http.StatusConflict, nil)

	// Paid courses cannot be enrolled directly.
	et.postOK(t, "/enrollments", map[string]any{"courseId": paid.ID}, http.StatusUnprocessableEntity, nil)

	// active -> paused -> active -> completed; then the state is terminal.
	var up enrollment.Enrollment
	et.patchOK(t, "/enrollments/"+e.ID, map[string]any{"status": "paused"}, http.StatusOK, &up)
	if up.Status != enrollment.Paused {
		t.Fatalf("status = %s, want paused", up.Status)
	}

	// A paused enrollment cannot complete.
	et.patchOK(t, "/enrollments/"+e.ID, map[string]any{"status": "completed"}, http.StatusUnprocessableEntity, nil)

	et.patchOK(t, "/enrollments/"+e.ID, map[string]any{"status": "active"}, http.StatusOK, &up)

	// Direct progress writes apply while the enrollment is active.
	et.patchOK(t, "/enrollments/"+e.ID+"/progress", map[string]any{"progress": 40}, http.StatusNoContent, nil)
	if res := et.checkOK(t, free.ID); res.Enrollment.Progress != 40 {
		t.Fatalf("progress = %d, want 40", res.Enrollment.Progress)
	}

	et.patchOK(t, "/enrollments/"+e.ID, map[string]any{"status": "completed"}, http.StatusOK, &up)

	if up.Status != enrollment.Completed {
		t.Fatalf("status = %s, want completed", up.Status)
	}
	if up.Progress != 100 || up.CompletedAt == nil {
		t.Fatal("completing did not set progress and completion time")
	}

	et.patchOK(t, "/enrollments/"+e.ID, map[string]any{"status": "active"}, http.StatusUnprocessableEntity, nil)
	et.patchOK(t, "/enrollments/"+e.ID, map[string]any{"status": "cancelled"}, http.StatusUnprocessableEntity, nil)

	// Progress cannot be rewritten below 100 once completed.
	et.patchOK(t, "/enrollments/"+e.ID+"/progress", map[string]any{"progress": 10}, http.StatusNoContent, nil)
	if res := et.checkOK(t, free.ID); res.Enrollment.Progress != 100 {
		t.Fatalf("progress = %d after completion, want 100", res.Enrollment.Progress)
	}

	// The completed enrollment earns a certificate, idempotently.
	var cert enrollment.Certificate
	et.getJSON(t, "/enrollments/"+e.ID+"/certificate", http.StatusOK, &cert)
	if cert.URL == "" {
		t.Fatal("certificate issued without a url")
	}

	var again enrollment.Certificate
	et.getJSON(t, "/enrollments/"+e.ID+"/certificate", http.StatusOK, &again)
	if again.URL != cert.URL {
		t.Fatalf("certificate url changed on reissue: %s != %s", again.URL, cert.URL)
	}

	// QR rendering of the same certificate.
	w, err := et.Client().Get(et.URL + "/enrollments/" + e.ID + "/certificate?format=qr")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()
	if w.StatusCode != http.StatusOK || w.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("qr certificate: status %s, content type %s", w.Status, w.Header.Get("Content-Type"))
	}

	et.Logout(t)

	// The enrollment belongs to the student; the instructor cannot
	// change it.
	et.Login(t, et.InstructorEmail, et.InstructorPass)
	et.patchOK(t, "/enrollments/"+e.ID, map[string]any{"status": "cancelled"}, http.StatusForbidden, nil)
	et.Logout(t)
}
