package store

import (
	"fmt"
	"time"

	"github.com/mkarlsen/classpilot/internal/model"
)

// ExportExamResults builds an export-ready document for all submissions
// of one exam, graded or not.
func (s *Store) ExportExamResults(examID int64) (*model.ExamResultsExport, error) {
	view, err := s.GetExamGradingView(examID)
	if err != nil {
		return nil, fmt.Errorf("load exam %d: %w", examID, err)
	}
	course, err := s.GetCourse(view.Topic.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get course %d: %w", view.Topic.CourseID, err)
	}

	export := &model.ExamResultsExport{
		ExamID:      view.Exam.ID,
		Title:       view.Exam.Title,
		TopicName:   view.Topic.Name,
		CourseName:  course.Name,
		GeneratedAt: time.Now(),
	}

	for _, sv := range view.Submissions {
		user, err := s.GetUserByID(sv.Submission.StudentID)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", sv.Submission.StudentID, err)
		}
		var username, displayName string
		if user != nil {
			username = user.Username
			displayName = user.DisplayName
		}

		var answers []model.AnswerResult
		for _, av := range sv.Answers {
			answers = append(answers, model.AnswerResult{
				QuestionText: av.Question.Text,
				Marks:        av.Question.Marks,
				AnswerText:   av.Answer.Text,
				Feedback:     av.Answer.Feedback,
				ErrorType:    av.Answer.ErrorType,
			})
		}

		export.Results = append(export.Results, model.SubmissionResult{
			SubmissionID:    sv.Submission.ID,
			Username:        username,
			DisplayName:     displayName,
			SubmittedAt:     sv.Submission.SubmittedAt,
			OverallScore:    sv.Submission.OverallScore,
			OverallFeedback: sv.Submission.OverallFeedback,
			Answers:         answers,
		})
	}

	return export, nil
}
