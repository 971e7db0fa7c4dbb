package model

import "time"

// ExamResultsExport is the top-level JSON structure for exam result export.
type ExamResultsExport struct {
	ExamID      int64              `json:"exam_id"`
	Title       string             `json:"title"`
	TopicName   string             `json:"topic_name"`
	CourseName  string             `json:"course_name"`
	GeneratedAt time.Time          `json:"generated_at"`
	Results     []SubmissionResult `json:"results"`
}

// SubmissionResult holds one student's submission data for export.
type SubmissionResult struct {
	SubmissionID    int64          `json:"submission_id"`
	Username        string         `json:"username"`
	DisplayName     string         `json:"display_name"`
	SubmittedAt     time.Time      `json:"submitted_at"`
	OverallScore    *float64       `json:"overall_score,omitempty"`
	OverallFeedback *string        `json:"overall_feedback,omitempty"`
	Answers         []AnswerResult `json:"answers"`
}

// AnswerResult holds per-answer data for export.
type AnswerResult struct {
	QuestionText string     `json:"question_text"`
	Marks        int        `json:"marks"`
	AnswerText   string     `json:"answer_text"`
	Feedback     *string    `json:"feedback,omitempty"`
	ErrorType    *ErrorType `json:"error_type,omitempty"`
}
