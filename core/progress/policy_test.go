package progress

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVideoEntryUp(t *testing.T) {
	tests := []struct {
		name      string
		position  int
		duration  int
		progress  int
		completed bool
	}{
		{"near the end", 190, 200, 95, true},
		{"halfway", 100, 200, 50, false},
		{"not started", 0, 200, 0, false},
		{"rounds up", 189, 200, 95, true},
		{"rounds down", 188, 200, 94, false},
		{"past the end", 250, 200, 100, true},
		{"finished exactly", 200, 200, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := VideoUp{
				ContentID: "d8a342b1-0f79-4e13-9e8a-8f0c79da6cbe",
				ModuleID:  "0a3bb965-2532-41d5-bfd9-9937c3ecbfbb",
				CourseID:  "9e2c2ed1-666b-44ff-a655-b3e76b5c0dd5",
				Position:  tt.position,
				Duration:  tt.duration,
				TimeSpent: 30,
			}

			e := up.EntryUp()

			if e.Progress != tt.progress {
				t.Errorf("progress = %d, want %d", e.Progress, tt.progress)
			}
			if e.Completed != tt.completed {
				t.Errorf("completed = %t, want %t", e.Completed, tt.completed)
			}
			if e.LastPosition == nil || *e.LastPosition != tt.position {
				t.Errorf("last position not carried over")
			}
		})
	}
}

func TestQuizEntryUp(t *testing.T) {
	tests := []struct {
		name      string
		score     int
		total     int
		progress  int
		completed bool
	}{
		{"one right answer completes", 1, 10, 10, true},
		{"zero score does not complete", 0, 10, 0, false},
		{"perfect score", 10, 10, 100, true},
		{"rounding", 2, 3, 67, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := QuizUp{
				ContentID:      "d8a342b1-0f79-4e13-9e8a-8f0c79da6cbe",
				ModuleID:       "0a3bb965-2532-41d5-bfd9-9937c3ecbfbb",
				CourseID:       "9e2c2ed1-666b-44ff-a655-b3e76b5c0dd5",
				Score:          tt.score,
				TotalQuestions: tt.total,
			}

			e := up.EntryUp()

			if e.Progress != tt.progress {
				t.Errorf("progress = %d, want %d", e.Progress, tt.progress)
			}
			if e.Completed != tt.completed {
				t.Errorf("completed = %t, want %t", e.Completed, tt.completed)
			}
		})
	}
}

func TestDocumentEntryUp(t *testing.T) {
	read := DocumentUp{
		ContentID: "d8a342b1-0f79-4e13-9e8a-8f0c79da6cbe",
		ModuleID:  "0a3bb965-2532-41d5-bfd9-9937c3ecbfbb",
		CourseID:  "9e2c2ed1-666b-44ff-a655-b3e76b5c0dd5",
		Event:     DocumentEventRead,
		TimeSpent: 12,
	}

	got := read.EntryUp()
	want := EntryUp{
		ContentID:        read.ContentID,
		ModuleID:         read.ModuleID,
		CourseID:         read.CourseID,
		Progress:         100,
		Completed:        true,
		TimeSpentSeconds: 12,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("read entry mismatch (-want +got):\n%s", diff)
	}

	download := read
	download.Event = DocumentEventDownload

	got = download.EntryUp()
	if got.Progress != 50 || got.Completed {
		t.Errorf("download = (%d, %t), want (50, false)", got.Progress, got.Completed)
	}
}
