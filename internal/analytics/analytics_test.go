package analytics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mkarlsen/classpilot/internal/model"
	"github.com/mkarlsen/classpilot/internal/store"
)

type testEnv struct {
	store     *store.Store
	teacherID int64
	courseID  int64
	students  []int64
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
	courseID, err := s.CreateCourse(model.Course{Name: "Chemistry", TeacherID: teacherID})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}

	env := &testEnv{store: s, teacherID: teacherID, courseID: courseID}
	for i := 0; i < 2; i++ {
		id, err := s.CreateUser(model.User{
			Username: fmt.Sprintf("student%d", i+1),
			Role:     model.UserRoleStudent,
		})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if err := s.Enroll(id, courseID); err != nil {
			t.Fatalf("Enroll: %v", err)
		}
		env.students = append(env.students, id)
	}
	return env
}

// addTopicExam creates a topic with one published single-question exam and
// returns both IDs plus the question ID.
func (env *testEnv) addTopicExam(t *testing.T, name string, due time.Time) (topicID, examID, questionID int64) {
	t.Helper()
	topicID, err := env.store.CreateTopic(model.Topic{CourseID: env.courseID, Name: name, DueDate: due})
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	examID, err = env.store.CreateExam(model.Exam{
		TopicID: topicID, Title: name + " exam",
		Status: model.ExamPublished, GradingInstructions: "x",
	})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	questionID, err = env.store.InsertQuestion(model.Question{ExamID: examID, Text: "Q", Marks: 1})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	return topicID, examID, questionID
}

// addGradedSubmission submits one answer and grades it with the given
// overall score and error type.
func (env *testEnv) addGradedSubmission(t *testing.T, studentID, examID, questionID int64, score float64, et model.ErrorType) {
	t.Helper()
	subID, err := env.store.CreateSubmission(studentID, examID, []model.AnswerInput{{QuestionID: questionID, Text: "ans"}})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	answers, err := env.store.GetAnswersForSubmission(subID)
	if err != nil {
		t.Fatalf("GetAnswersForSubmission: %v", err)
	}
	err = env.store.SaveSubmissionGrades(model.SubmissionGrades{
		SubmissionID: subID, OverallScore: score, OverallFeedback: "fb",
		Answers: []model.AnswerGrade{{AnswerID: answers[0].Answer.ID, Feedback: "fb", ErrorType: et}},
	})
	if err != nil {
		t.Fatalf("SaveSubmissionGrades: %v", err)
	}
}

func TestCourseAnalyticsOwnership(t *testing.T) {
	env := newTestEnv(t)
	e := New(env.store)

	if _, err := e.CourseAnalytics(env.courseID, env.students[0]); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if _, err := e.CourseAnalytics(999, env.teacherID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCourseAnalyticsEmptyCourse(t *testing.T) {
	env := newTestEnv(t)
	e := New(env.store)

	report, err := e.CourseAnalytics(env.courseID, env.teacherID)
	if err != nil {
		t.Fatalf("CourseAnalytics: %v", err)
	}
	if report.TotalEnrollment != 2 {
		t.Errorf("enrollment = %d, want 2", report.TotalEnrollment)
	}
	if report.TotalSubmissions != 0 {
		t.Errorf("submissions = %d, want 0", report.TotalSubmissions)
	}
	if report.AverageCourseScore != nil {
		t.Errorf("average = %v, want nil", report.AverageCourseScore)
	}
	if report.MostMisunderstoodTopics == nil || len(report.MostMisunderstoodTopics) != 0 {
		t.Errorf("misunderstood topics = %v, want empty slice", report.MostMisunderstoodTopics)
	}
	if report.CommonErrorTypes == nil || len(report.CommonErrorTypes) != 0 {
		t.Errorf("error types = %v, want empty slice", report.CommonErrorTypes)
	}
}

func TestCourseAnalyticsMisunderstoodRanking(t *testing.T) {
	env := newTestEnv(t)
	e := New(env.store)
	due := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	// Topic averages: A=8.0, B=3.0, C=5.0, D=9.0. Lowest three ascending
	// should be B, C, A.
	scores := []struct {
		topic string
		score float64
	}{
		{"Topic A", 8.0},
		{"Topic B", 3.0},
		{"Topic C", 5.0},
		{"Topic D", 9.0},
	}
	for _, sc := range scores {
		_, examID, qID := env.addTopicExam(t, sc.topic, due)
		env.addGradedSubmission(t, env.students[0], examID, qID, sc.score, model.ErrorConceptual)
		due = due.AddDate(0, 0, 1)
	}

	report, err := e.CourseAnalytics(env.courseID, env.teacherID)
	if err != nil {
		t.Fatalf("CourseAnalytics: %v", err)
	}

	wantTopics := []string{"Topic B", "Topic C", "Topic A"}
	if len(report.MostMisunderstoodTopics) != len(wantTopics) {
		t.Fatalf("got %d topics, want %d: %+v",
			len(report.MostMisunderstoodTopics), len(wantTopics), report.MostMisunderstoodTopics)
	}
	for i, want := range wantTopics {
		got := report.MostMisunderstoodTopics[i]
		if got.TopicName != want {
			t.Errorf("rank %d = %q, want %q", i, got.TopicName, want)
		}
	}

	if report.TotalSubmissions != 4 {
		t.Errorf("submissions = %d, want 4", report.TotalSubmissions)
	}
	if report.AverageCourseScore == nil || *report.AverageCourseScore != 6.25 {
		t.Errorf("average = %v, want 6.25", report.AverageCourseScore)
	}
}

func TestCourseAnalyticsSkipsUnscoredTopics(t *testing.T) {
	env := newTestEnv(t)
	e := New(env.store)
	due := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	_, examID, qID := env.addTopicExam(t, "Scored", due)
	env.addGradedSubmission(t, env.students[0], examID, qID, 4.0, model.ErrorConceptual)

	// Ungraded submission only; topic has no scores to rank.
	_, examID2, qID2 := env.addTopicExam(t, "Unscored", due.AddDate(0, 0, 1))
	if _, err := env.store.CreateSubmission(env.students[1], examID2, []model.AnswerInput{{QuestionID: qID2, Text: "a"}}); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	report, err := e.CourseAnalytics(env.courseID, env.teacherID)
	if err != nil {
		t.Fatalf("CourseAnalytics: %v", err)
	}
	if len(report.MostMisunderstoodTopics) != 1 {
		t.Fatalf("got %d topics, want 1: %+v", len(report.MostMisunderstoodTopics), report.MostMisunderstoodTopics)
	}
	if report.MostMisunderstoodTopics[0].TopicName != "Scored" {
		t.Errorf("topic = %q", report.MostMisunderstoodTopics[0].TopicName)
	}
	if report.TotalSubmissions != 2 {
		t.Errorf("submissions = %d, want 2", report.TotalSubmissions)
	}
}

func TestCourseAnalyticsErrorTypeCounts(t *testing.T) {
	env := newTestEnv(t)
	e := New(env.store)
	due := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	types := []model.ErrorType{
		model.ErrorConceptual, model.ErrorConceptual, model.ErrorProcedural,
		model.ErrorCorrect, model.ErrorCorrect, model.ErrorCorrect,
	}
	for i, et := range types {
		_, examID, qID := env.addTopicExam(t, fmt.Sprintf("T%d", i), due.AddDate(0, 0, i))
		env.addGradedSubmission(t, env.students[i%2], examID, qID, 5.0, et)
	}

	report, err := e.CourseAnalytics(env.courseID, env.teacherID)
	if err != nil {
		t.Fatalf("CourseAnalytics: %v", err)
	}
	want := []model.ErrorTypeCount{
		{ErrorType: model.ErrorCorrect, Count: 3},
		{ErrorType: model.ErrorConceptual, Count: 2},
		{ErrorType: model.ErrorProcedural, Count: 1},
	}
	if len(report.CommonErrorTypes) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(report.CommonErrorTypes), len(want), report.CommonErrorTypes)
	}
	for i := range want {
		if report.CommonErrorTypes[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, report.CommonErrorTypes[i], want[i])
		}
	}
}

func TestStudentUpcomingTopics(t *testing.T) {
	env := newTestEnv(t)
	e := New(env.store)
	today := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	add := func(name string, offsetDays int) {
		t.Helper()
		_, err := env.store.CreateTopic(model.Topic{
			CourseID: env.courseID, Name: name,
			DueDate: today.AddDate(0, 0, offsetDays),
		})
		if err != nil {
			t.Fatalf("CreateTopic: %v", err)
		}
	}
	add("Past", -1)
	add("Today", 0)
	add("Next week", 7)
	add("Boundary", 14)
	add("Beyond", 15)

	topics, err := e.StudentUpcomingTopics(env.students[0], today)
	if err != nil {
		t.Fatalf("StudentUpcomingTopics: %v", err)
	}

	wantNames := []string{"Today", "Next week", "Boundary"}
	if len(topics) != len(wantNames) {
		t.Fatalf("got %d topics, want %d: %+v", len(topics), len(wantNames), topics)
	}
	for i, want := range wantNames {
		if topics[i].TopicName != want {
			t.Errorf("topic %d = %q, want %q", i, topics[i].TopicName, want)
		}
	}
}

func TestStudentPerformanceSummary(t *testing.T) {
	env := newTestEnv(t)
	e := New(env.store)
	due := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	types := []model.ErrorType{
		model.ErrorConceptual, model.ErrorConceptual,
		model.ErrorProcedural,
		model.ErrorCorrect, model.ErrorCorrect, model.ErrorCorrect,
	}
	for i, et := range types {
		_, examID, qID := env.addTopicExam(t, fmt.Sprintf("T%d", i), due.AddDate(0, 0, i))
		env.addGradedSubmission(t, env.students[0], examID, qID, 5.0, et)
	}

	summary, err := e.StudentPerformanceSummary(env.students[0])
	if err != nil {
		t.Fatalf("StudentPerformanceSummary: %v", err)
	}
	if summary.MostCommonError == nil || *summary.MostCommonError != model.ErrorConceptual {
		t.Errorf("most common error = %v, want conceptual", summary.MostCommonError)
	}
	if summary.ErrorCount != 2 {
		t.Errorf("error count = %d, want 2", summary.ErrorCount)
	}
	if summary.TotalGradedAnswers != 6 {
		t.Errorf("total graded = %d, want 6", summary.TotalGradedAnswers)
	}
}

func TestStudentPerformanceSummaryNoErrors(t *testing.T) {
	env := newTestEnv(t)
	e := New(env.store)
	due := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	_, examID, qID := env.addTopicExam(t, "All correct", due)
	env.addGradedSubmission(t, env.students[0], examID, qID, 10.0, model.ErrorCorrect)

	summary, err := e.StudentPerformanceSummary(env.students[0])
	if err != nil {
		t.Fatalf("StudentPerformanceSummary: %v", err)
	}
	if summary.MostCommonError != nil {
		t.Errorf("most common error = %v, want nil", summary.MostCommonError)
	}
	if summary.ErrorCount != 0 {
		t.Errorf("error count = %d, want 0", summary.ErrorCount)
	}
	if summary.TotalGradedAnswers != 1 {
		t.Errorf("total graded = %d, want 1", summary.TotalGradedAnswers)
	}
}
