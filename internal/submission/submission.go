// Package submission validates and records exam submissions.
package submission

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mkarlsen/classpilot/internal/model"
	"github.com/mkarlsen/classpilot/internal/store"
)

// Service creates submissions after running the validation chain.
type Service struct {
	store *store.Store
}

// New creates a submission service.
func New(s *store.Store) *Service {
	return &Service{store: s}
}

// Create records a student's answers for an exam. It fails with a typed
// precondition error when the exam is not published, the student is not
// enrolled in the exam's course, the student already submitted, or the
// answers do not cover the exam's question set exactly.
func (s *Service) Create(studentID, examID int64, answers []model.AnswerInput) (*model.Submission, error) {
	exam, err := s.store.GetExam(examID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrExamNotAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("get exam %d: %w", examID, err)
	}
	if exam.Status != model.ExamPublished {
		return nil, model.ErrExamNotAvailable
	}

	topic, err := s.store.GetTopic(exam.TopicID)
	if err != nil {
		return nil, fmt.Errorf("get topic %d: %w", exam.TopicID, err)
	}

	enrolled, err := s.store.IsEnrolled(studentID, topic.CourseID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, model.ErrNotEnrolled
	}

	existing, err := s.store.GetSubmissionByStudentAndExam(studentID, examID)
	if err != nil {
		return nil, fmt.Errorf("check existing submission: %w", err)
	}
	if existing != nil {
		return nil, model.ErrAlreadySubmitted
	}

	questions, err := s.store.GetQuestionsForExam(examID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	if err := validateAnswerSet(questions, answers); err != nil {
		return nil, err
	}

	id, err := s.store.CreateSubmission(studentID, examID, answers)
	if err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	slog.Info("created submission",
		"submission_id", id, "student_id", studentID, "exam_id", examID)

	sub, err := s.store.GetSubmission(id)
	if err != nil {
		return nil, fmt.Errorf("reload submission %d: %w", id, err)
	}
	return &sub, nil
}

// validateAnswerSet requires the answered questions to equal the exam's
// question set: one answer per question, no extras, no gaps.
func validateAnswerSet(questions []model.Question, answers []model.AnswerInput) error {
	if len(answers) != len(questions) {
		return model.ErrAnswerMismatch
	}
	want := make(map[int64]bool, len(questions))
	for _, q := range questions {
		want[q.ID] = false
	}
	for _, a := range answers {
		seen, ok := want[a.QuestionID]
		if !ok || seen {
			return model.ErrAnswerMismatch
		}
		want[a.QuestionID] = true
	}
	return nil
}
