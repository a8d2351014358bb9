package test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/content"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/progress"
	"github.com/redis/go-redis/v9"
)

type progressTest struct {
	*TestEnv
}

func TestProgress(t *testing.T) {
	env, err := NewTestEnv(t, "progress_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	et := &enrollmentTest{env}
	pt := &progressTest{env}

	ct.Login(t, ct.InstructorEmail, ct.InstructorPass)
	crs := ct.createCourseOK(t, 0)
	mod := ct.createModuleOK(t, crs.ID)
	video := ct.createItemOK(t, mod.ID, content.KindVideo)
	quiz := ct.createItemOK(t, mod.ID, content.KindQuiz)
	doc := ct.createItemOK(t, mod.ID, content.KindDocument)
	text := ct.createItemOK(t, mod.ID, content.KindText)
	ct.Logout(t)

	pt.Login(t, pt.UserEmail, pt.UserPass)
	et.enrollOK(t, crs.ID)

	// Watching 190 of 200 seconds crosses the completion threshold.
	var e progress.Entry
	pt.postOK(t, "/progress/video", map[string]any{
		"contentId": video.ID,
		"moduleId":  mod.ID,
		"courseId":  crs.ID,
		"position":  190,
		"duration":  200,
	}, http.StatusOK, &e)
	if e.Progress != 95 || !e.Completed {
		t.Fatalf("video entry = (%d, %t), want (95, true)", e.Progress, e.Completed)
	}

	// Scrubbing back does not undo completion.
	pt.postOK(t, "/progress/video", map[string]any{
		"contentId": video.ID,
		"moduleId":  mod.ID,
		"courseId":  crs.ID,
		"position":  100,
		"duration":  200,
	}, http.StatusOK, &e)
	if !e.Completed {
		t.Fatal("rewatching reset the completed flag")
	}
	if e.Progress != 95 {
		t.Fatalf("progress regressed to %d after completion", e.Progress)
	}

	// A zero score records the attempt without completing the quiz.
	pt.postOK(t, "/progress/quiz", map[string]any{
		"contentId":      quiz.ID,
		"moduleId":       mod.ID,
		"courseId":       crs.ID,
		"score":          0,
		"totalQuestions": 10,
	}, http.StatusOK, &e)
	if e.Completed {
		t.Fatal("zero score completed the quiz")
	}

	pt.postOK(t, "/progress/quiz", map[string]any{
		"contentId":      quiz.ID,
		"moduleId":       mod.ID,
		"courseId":       crs.ID,
		"score":          1,
		"totalQuestions": 10,
	}, http.StatusOK, &e)
	if e.Progress != 10 || !e.Completed {
		t.Fatalf("quiz entry = (%d, %t), want (10, true)", e.Progress, e.Completed)
	}

	// Downloading earns partial credit, reading completes.
	pt.postOK(t, "/progress/document", map[string]any{
		"contentId": doc.ID,
		"moduleId":  mod.ID,
		"courseId":  crs.ID,
		"event":     "download",
	}, http.StatusOK, &e)
	if e.Progress != 50 || e.Completed {
		t.Fatalf("download entry = (%d, %t), want (50, false)", e.Progress, e.Completed)
	}

	pt.postOK(t, "/progress/document", map[string]any{
		"contentId": doc.ID,
		"moduleId":  mod.ID,
		"courseId":  crs.ID,
		"event":     "read",
	}, http.StatusOK, &e)
	if e.Progress != 100 || !e.Completed {
		t.Fatalf("read entry = (%d, %t), want (100, true)", e.Progress, e.Completed)
	}

	// Untouched content answers with the zero state, not a 404.
	pt.getJSON(t, "/progress/content/"+text.ID, http.StatusOK, &e)
	if e.Progress != 0 || e.Completed {
		t.Fatal("untouched content should read as not started")
	}

	// 3 of 4 items completed.
	var s progress.Summary
	pt.getJSON(t, "/progress/course/"+crs.ID+"/summary", http.StatusOK, &s)
	if s.TotalContent != 4 || s.CompletedContent != 3 || s.OverallProgress != 75 {
		t.Fatalf("summary = %+v, want 3 of 4 at 75%%", s)
	}

	// The summary is mirrored onto the enrollment row.
	res := et.checkOK(t, crs.ID)
	if res.Enrollment == nil || res.Enrollment.Progress != 75 {
		t.Fatal("enrollment progress was not mirrored from the summary")
	}

	var entries []progress.Entry
	pt.getJSON(t, "/progress/module/"+mod.ID, http.StatusOK, &entries)
	if len(entries) != 3 {
		t.Fatalf("got %d module entries, want 3", len(entries))
	}

	pt.Logout(t)
}

func TestProgressSummaryCache(t *testing.T) {
	env, err := NewTestEnv(t, "progress_cache_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	et := &enrollmentTest{env}
	pt := &progressTest{env}

	ct.Login(t, ct.InstructorEmail, ct.InstructorPass)
	crs := ct.createCourseOK(t, 0)
	mod := ct.createModuleOK(t, crs.ID)
	first := ct.createItemOK(t, mod.ID, content.KindVideo)
	second := ct.createItemOK(t, mod.ID, content.KindVideo)
	ct.Logout(t)

	student := pt.Login(t, pt.UserEmail, pt.UserPass)
	et.enrollOK(t, crs.ID)

	pt.postOK(t, "/progress/video", map[string]any{
		"contentId": first.ID,
		"moduleId":  mod.ID,
		"courseId":  crs.ID,
		"position":  190,
		"duration":  200,
	}, http.StatusOK, nil)

	var s progress.Summary
	pt.getJSON(t, "/progress/course/"+crs.ID+"/summary", http.StatusOK, &s)
	if s.CompletedContent != 1 || s.OverallProgress != 50 {
		t.Fatalf("summary = %+v, want 1 of 2 at 50%%", s)
	}

	// Reading the summary populates the cache.
	rdb := redis.NewClient(&redis.Options{Addr: redisHost})
	defer rdb.Close()

	key := fmt.Sprintf("progress:summary:%s:%s", student.ID, crs.ID)
	if n, err := rdb.Exists(context.Background(), key).Result(); err != nil || n != 1 {
		t.Fatalf("summary was not cached (exists = %d, err = %v)", n, err)
	}

	// Recording progress drops the cached roll-up.
	pt.postOK(t, "/progress/video", map[string]any{
		"contentId": second.ID,
		"moduleId":  mod.ID,
		"courseId":  crs.ID,
		"position":  200,
		"duration":  200,
	}, http.StatusOK, nil)

	if n, err := rdb.Exists(context.Background(), key).Result(); err != nil || n != 0 {
		t.Fatalf("recording progress left a cached summary behind (exists = %d, err = %v)", n, err)
	}

	// The next read reflects the write instead of the old roll-up.
	pt.getJSON(t, "/progress/course/"+crs.ID+"/summary", http.StatusOK, &s)
	if s.CompletedContent != 2 || s.OverallProgress != 100 {
		t.Fatalf("summary = %+v, want 2 of 2 at 100%%", s)
	}

	pt.Logout(t)
}
