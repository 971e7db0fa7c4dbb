package model

import "time"

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
}

// Course represents a course taught by one teacher.
type Course struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	TeacherID int64  `json:"teacher_id"`
}

// Topic is a scheduled unit of course content. Exams attach to topics,
// which makes topics the grouping key for course analytics.
type Topic struct {
	ID          int64     `json:"id"`
	CourseID    int64     `json:"course_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
}

// ExamStatus represents the lifecycle state of an exam.
type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamPublished ExamStatus = "published"
)

// Exam represents an exam attached to a course topic.
type Exam struct {
	ID                  int64      `json:"id"`
	TopicID             int64      `json:"topic_id"`
	Title               string     `json:"title"`
	Status              ExamStatus `json:"status"`
	GradingInstructions string     `json:"grading_instructions"`
}

// Question represents a single exam question.
type Question struct {
	ID          int64  `json:"id"`
	ExamID      int64  `json:"exam_id"`
	Text        string `json:"text"`
	ModelAnswer string `json:"model_answer"`
	Marks       int    `json:"marks"`
}

// Submission is one student's complete set of answers to one exam.
// OverallScore is nil until the submission has been graded.
type Submission struct {
	ID              int64     `json:"id"`
	StudentID       int64     `json:"student_id"`
	ExamID          int64     `json:"exam_id"`
	SubmittedAt     time.Time `json:"submitted_at"`
	OverallScore    *float64  `json:"overall_score,omitempty"`
	OverallFeedback *string   `json:"overall_feedback,omitempty"`
}

// Graded reports whether the submission has an overall score.
func (s Submission) Graded() bool {
	return s.OverallScore != nil
}

// ErrorType categorizes the nature of a mistake in an answer.
type ErrorType string

const (
	ErrorCorrect          ErrorType = "correct"
	ErrorConceptual       ErrorType = "conceptual"
	ErrorProcedural       ErrorType = "procedural"
	ErrorInterpretational ErrorType = "interpretational"
	ErrorIncomplete       ErrorType = "incomplete"
	ErrorSystem           ErrorType = "system_error"
)

var validErrorTypes = map[ErrorType]bool{
	ErrorCorrect:          true,
	ErrorConceptual:       true,
	ErrorProcedural:       true,
	ErrorInterpretational: true,
	ErrorIncomplete:       true,
	ErrorSystem:           true,
}

// ValidErrorType checks if a string is a member of the error-type enumeration.
func ValidErrorType(s string) bool {
	return validErrorTypes[ErrorType(s)]
}

// Answer represents one student's answer to one question.
// Feedback and ErrorType are nil until the answer has been graded.
type Answer struct {
	ID           int64      `json:"id"`
	SubmissionID int64      `json:"submission_id"`
	QuestionID   int64      `json:"question_id"`
	Text         string     `json:"answer_text"`
	Feedback     *string    `json:"feedback,omitempty"`
	ErrorType    *ErrorType `json:"error_type,omitempty"`
}

// AnswerInput is a single answer supplied when submitting an exam.
type AnswerInput struct {
	QuestionID int64  `json:"question_id"`
	Text       string `json:"answer_text"`
}

// AnswerView pairs an answer with its parent question for grading.
type AnswerView struct {
	Answer   Answer
	Question Question
}

// SubmissionView combines a submission with its answers and their questions.
type SubmissionView struct {
	Submission Submission
	Answers    []AnswerView
}

// ExamGradingView is the fully materialized aggregate the orchestrator
// works on: the exam, its topic, and every submission with answers and
// question texts. No further fetches happen mid-algorithm.
type ExamGradingView struct {
	Exam        Exam
	Topic       Topic
	Submissions []SubmissionView
}

// AnswerGrade holds the graded fields written back to one answer.
type AnswerGrade struct {
	AnswerID  int64
	Feedback  string
	ErrorType ErrorType
}

// SubmissionGrades holds everything persisted for one graded submission.
// The store commits all of it in a single transaction.
type SubmissionGrades struct {
	SubmissionID    int64
	OverallScore    float64
	OverallFeedback string
	Answers         []AnswerGrade
}

// ErrorTypeCount is an error-type frequency row.
type ErrorTypeCount struct {
	ErrorType ErrorType `json:"error_type"`
	Count     int       `json:"count"`
}

// CourseSubmission is a submission row scoped to a course, carrying the
// topic it belongs to for per-topic aggregation.
type CourseSubmission struct {
	SubmissionID int64
	ExamID       int64
	TopicID      int64
	OverallScore *float64
}

// TopicScore is a per-topic average score row. AverageScore is nil for
// topics with no scored submissions.
type TopicScore struct {
	TopicID      int64    `json:"topic_id"`
	TopicName    string   `json:"topic_name"`
	AverageScore *float64 `json:"average_score,omitempty"`
}

// CourseReport is the course-level analytics report.
type CourseReport struct {
	CourseID                int64            `json:"course_id"`
	CourseName              string           `json:"course_name"`
	TotalEnrollment         int              `json:"total_enrollment"`
	TotalSubmissions        int              `json:"total_submissions"`
	AverageCourseScore      *float64         `json:"average_course_score,omitempty"`
	MostMisunderstoodTopics []TopicScore     `json:"most_misunderstood_topics"`
	CommonErrorTypes        []ErrorTypeCount `json:"common_error_types"`
}

// UpcomingTopic is a topic due soon in one of a student's enrolled courses.
type UpcomingTopic struct {
	TopicName  string    `json:"topic_name"`
	CourseName string    `json:"course_name"`
	DueDate    time.Time `json:"due_date"`
}

// PerformanceSummary is the student-level error analysis report.
// MostCommonError is nil when the student has no non-correct errors.
type PerformanceSummary struct {
	MostCommonError    *ErrorType `json:"most_common_error,omitempty"`
	ErrorCount         int        `json:"error_count"`
	TotalGradedAnswers int        `json:"total_graded_answers"`
}
