// Package examgen provides teacher tooling: AI-generated draft exams,
// exam publishing, and AI-generated course schedules.
package examgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkarlsen/classpilot/internal/grader"
	"github.com/mkarlsen/classpilot/internal/model"
	"github.com/mkarlsen/classpilot/internal/store"
)

// questionsPerExam is how many questions a generated draft exam gets.
const questionsPerExam = 10

// Generator is the slice of the evaluation client this service needs.
type Generator interface {
	GenerateQuestions(ctx context.Context, courseName, topicName string, n int) ([]string, error)
	GenerateSchedule(ctx context.Context, syllabus string, start time.Time) ([]grader.GeneratedTopic, error)
}

// Service implements teacher-side exam and schedule tooling.
type Service struct {
	store *store.Store
	gen   Generator
}

// New creates an examgen service.
func New(s *store.Store, g Generator) *Service {
	return &Service{store: s, gen: g}
}

// GenerateDraftExam creates a draft exam with AI-generated questions for
// a topic the teacher owns. ErrNotFound covers both a missing topic and
// an ownership mismatch.
func (s *Service) GenerateDraftExam(ctx context.Context, topicID, teacherID int64) (*model.Exam, error) {
	topic, err := s.store.GetTopicByIDAndTeacher(topicID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get topic %d: %w", topicID, err)
	}
	if topic == nil {
		return nil, model.ErrNotFound
	}

	course, err := s.store.GetCourse(topic.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get course %d: %w", topic.CourseID, err)
	}

	texts, err := s.gen.GenerateQuestions(ctx, course.Name, topic.Name, questionsPerExam)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	examID, err := s.store.CreateExamDraft(topic.ID, "Draft Exam: "+topic.Name, texts)
	if err != nil {
		return nil, fmt.Errorf("create draft exam: %w", err)
	}
	slog.Info("created draft exam",
		"exam_id", examID, "topic_id", topic.ID, "questions", len(texts))

	exam, err := s.store.GetExam(examID)
	if err != nil {
		return nil, fmt.Errorf("reload exam %d: %w", examID, err)
	}
	return &exam, nil
}

// Publish transitions a teacher's draft exam to published with the given
// grading instructions. Instructions must be non-empty because grading
// cannot run without them.
func (s *Service) Publish(examID, teacherID int64, instructions string) error {
	if strings.TrimSpace(instructions) == "" {
		return model.ErrEmptyInstructions
	}

	exam, err := s.store.GetExam(examID)
	if err != nil {
		return fmt.Errorf("get exam %d: %w", examID, err)
	}
	topic, err := s.store.GetTopicByIDAndTeacher(exam.TopicID, teacherID)
	if err != nil {
		return fmt.Errorf("get topic %d: %w", exam.TopicID, err)
	}
	if topic == nil {
		return model.ErrNotFound
	}

	if err := s.store.PublishExam(examID, instructions); err != nil {
		return fmt.Errorf("publish exam %d: %w", examID, err)
	}
	slog.Info("published exam", "exam_id", examID)
	return nil
}

// GenerateSchedule turns syllabus text into schedule entries for a course
// the teacher owns, with due dates starting from today.
func (s *Service) GenerateSchedule(ctx context.Context, courseID, teacherID int64, syllabus string, today time.Time) ([]model.Topic, error) {
	course, err := s.store.GetCourseByIDAndTeacher(courseID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get course %d: %w", courseID, err)
	}
	if course == nil {
		return nil, model.ErrNotFound
	}
	if strings.TrimSpace(syllabus) == "" {
		return nil, fmt.Errorf("syllabus text is empty")
	}

	generated, err := s.gen.GenerateSchedule(ctx, syllabus, today)
	if err != nil {
		return nil, fmt.Errorf("generate schedule: %w", err)
	}

	topics := make([]model.Topic, 0, len(generated))
	for _, g := range generated {
		topics = append(topics, model.Topic{
			CourseID:    course.ID,
			Name:        g.Name,
			Description: g.Description,
			DueDate:     g.DueDate,
		})
	}
	if err := s.store.CreateTopics(topics); err != nil {
		return nil, fmt.Errorf("save topics: %w", err)
	}
	slog.Info("generated schedule", "course_id", course.ID, "topics", len(topics))

	saved, err := s.store.ListTopicsForCourse(course.ID)
	if err != nil {
		return nil, fmt.Errorf("reload topics: %w", err)
	}
	return saved, nil
}
