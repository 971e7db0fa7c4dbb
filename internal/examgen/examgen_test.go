package examgen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkarlsen/classpilot/internal/grader"
	"github.com/mkarlsen/classpilot/internal/model"
	"github.com/mkarlsen/classpilot/internal/store"
)

type fakeGenerator struct {
	questionsFn func(ctx context.Context, courseName, topicName string, n int) ([]string, error)
	scheduleFn  func(ctx context.Context, syllabus string, start time.Time) ([]grader.GeneratedTopic, error)
}

func (f *fakeGenerator) GenerateQuestions(ctx context.Context, courseName, topicName string, n int) ([]string, error) {
	return f.questionsFn(ctx, courseName, topicName, n)
}

func (f *fakeGenerator) GenerateSchedule(ctx context.Context, syllabus string, start time.Time) ([]grader.GeneratedTopic, error) {
	return f.scheduleFn(ctx, syllabus, start)
}

type testEnv struct {
	store     *store.Store
	teacherID int64
	otherID   int64
	courseID  int64
	topicID   int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	teacherID, err := s.CreateUser(model.User{Username: "teacher", Role: model.UserRoleTeacher})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	otherID, err := s.CreateUser(model.User{Username: "other", Role: model.UserRoleTeacher})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	courseID, err := s.CreateCourse(model.Course{Name: "Biology", TeacherID: teacherID})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	topicID, err := s.CreateTopic(model.Topic{
		CourseID: courseID, Name: "Cells",
		DueDate: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return &testEnv{store: s, teacherID: teacherID, otherID: otherID, courseID: courseID, topicID: topicID}
}

func TestGenerateDraftExam(t *testing.T) {
	env := newTestEnv(t)
	gen := &fakeGenerator{
		questionsFn: func(_ context.Context, courseName, topicName string, n int) ([]string, error) {
			if courseName != "Biology" || topicName != "Cells" {
				t.Errorf("prompt context = %q/%q", courseName, topicName)
			}
			if n != questionsPerExam {
				t.Errorf("n = %d, want %d", n, questionsPerExam)
			}
			return []string{"Q1", "Q2", "Q3"}, nil
		},
	}
	svc := New(env.store, gen)

	exam, err := svc.GenerateDraftExam(context.Background(), env.topicID, env.teacherID)
	if err != nil {
		t.Fatalf("GenerateDraftExam: %v", err)
	}
	if exam.Status != model.ExamDraft {
		t.Errorf("status = %q, want %q", exam.Status, model.ExamDraft)
	}
	if exam.Title != "Draft Exam: Cells" {
		t.Errorf("title = %q", exam.Title)
	}

	questions, err := env.store.GetQuestionsForExam(exam.ID)
	if err != nil {
		t.Fatalf("GetQuestionsForExam: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
}

func TestGenerateDraftExamOwnership(t *testing.T) {
	env := newTestEnv(t)
	svc := New(env.store, &fakeGenerator{})

	_, err := svc.GenerateDraftExam(context.Background(), env.topicID, env.otherID)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerateDraftExamGeneratorFailure(t *testing.T) {
	env := newTestEnv(t)
	gen := &fakeGenerator{
		questionsFn: func(context.Context, string, string, int) ([]string, error) {
			return nil, grader.ErrServiceUnavailable
		},
	}
	svc := New(env.store, gen)

	_, err := svc.GenerateDraftExam(context.Background(), env.topicID, env.teacherID)
	if !errors.Is(err, grader.ErrServiceUnavailable) {
		t.Fatalf("error = %v, want ErrServiceUnavailable", err)
	}
}

func TestPublish(t *testing.T) {
	env := newTestEnv(t)
	svc := New(env.store, nil)

	examID, err := env.store.CreateExamDraft(env.topicID, "Draft", []string{"Q1"})
	if err != nil {
		t.Fatalf("CreateExamDraft: %v", err)
	}

	if err := svc.Publish(examID, env.teacherID, "Check reasoning, not spelling."); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	exam, err := env.store.GetExam(examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if exam.Status != model.ExamPublished {
		t.Errorf("status = %q, want %q", exam.Status, model.ExamPublished)
	}
	if exam.GradingInstructions != "Check reasoning, not spelling." {
		t.Errorf("instructions = %q", exam.GradingInstructions)
	}
}

func TestPublishRequiresInstructions(t *testing.T) {
	env := newTestEnv(t)
	svc := New(env.store, nil)

	examID, err := env.store.CreateExamDraft(env.topicID, "Draft", []string{"Q1"})
	if err != nil {
		t.Fatalf("CreateExamDraft: %v", err)
	}

	for _, instructions := range []string{"", "   ", "\n\t"} {
		if err := svc.Publish(examID, env.teacherID, instructions); !errors.Is(err, model.ErrEmptyInstructions) {
			t.Errorf("Publish(%q) = %v, want ErrEmptyInstructions", instructions, err)
		}
	}
}

func TestPublishOwnership(t *testing.T) {
	env := newTestEnv(t)
	svc := New(env.store, nil)

	examID, err := env.store.CreateExamDraft(env.topicID, "Draft", []string{"Q1"})
	if err != nil {
		t.Fatalf("CreateExamDraft: %v", err)
	}

	if err := svc.Publish(examID, env.otherID, "x"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerateSchedule(t *testing.T) {
	env := newTestEnv(t)
	today := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	gen := &fakeGenerator{
		scheduleFn: func(_ context.Context, syllabus string, start time.Time) ([]grader.GeneratedTopic, error) {
			if syllabus != "week 1: cells\nweek 2: genetics" {
				t.Errorf("syllabus = %q", syllabus)
			}
			if !start.Equal(today) {
				t.Errorf("start = %v, want %v", start, today)
			}
			return []grader.GeneratedTopic{
				{Name: "Cell Structure", Description: "Organelles.", DueDate: today.AddDate(0, 0, 7)},
				{Name: "Genetics", Description: "Heredity.", DueDate: today.AddDate(0, 0, 14)},
			}, nil
		},
	}
	svc := New(env.store, gen)

	topics, err := svc.GenerateSchedule(context.Background(), env.courseID, env.teacherID,
		"week 1: cells\nweek 2: genetics", today)
	if err != nil {
		t.Fatalf("GenerateSchedule: %v", err)
	}

	// The pre-existing "Cells" topic plus the two generated ones.
	if len(topics) != 3 {
		t.Fatalf("expected 3 topics, got %d: %+v", len(topics), topics)
	}
	var names []string
	for _, topic := range topics {
		names = append(names, topic.Name)
	}
	want := []string{"Cell Structure", "Cells", "Genetics"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("topic %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestGenerateScheduleOwnership(t *testing.T) {
	env := newTestEnv(t)
	svc := New(env.store, &fakeGenerator{})

	_, err := svc.GenerateSchedule(context.Background(), env.courseID, env.otherID, "syllabus", time.Now())
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerateScheduleEmptySyllabus(t *testing.T) {
	env := newTestEnv(t)
	svc := New(env.store, &fakeGenerator{})

	_, err := svc.GenerateSchedule(context.Background(), env.courseID, env.teacherID, "   ", time.Now())
	if err == nil {
		t.Fatal("expected error for empty syllabus")
	}
}
