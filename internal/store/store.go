package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mkarlsen/classpilot/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'student',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS courses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		teacher_id INTEGER NOT NULL,
		FOREIGN KEY (teacher_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		student_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		PRIMARY KEY (student_id, course_id),
		FOREIGN KEY (student_id) REFERENCES users(id),
		FOREIGN KEY (course_id) REFERENCES courses(id)
	);

	CREATE TABLE IF NOT EXISTS topics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL,
		FOREIGN KEY (course_id) REFERENCES courses(id)
	);

	CREATE TABLE IF NOT EXISTS exams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		grading_instructions TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (topic_id) REFERENCES topics(id)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		model_answer TEXT NOT NULL DEFAULT '',
		marks INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (exam_id) REFERENCES exams(id)
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		exam_id INTEGER NOT NULL,
		submitted_at DATETIME NOT NULL,
		overall_score REAL,
		overall_feedback TEXT,
		UNIQUE (student_id, exam_id),
		FOREIGN KEY (student_id) REFERENCES users(id),
		FOREIGN KEY (exam_id) REFERENCES exams(id)
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		answer_text TEXT NOT NULL,
		feedback TEXT,
		error_type TEXT,
		UNIQUE (submission_id, question_id),
		FOREIGN KEY (submission_id) REFERENCES submissions(id) ON DELETE CASCADE,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateCourse inserts a course.
func (s *Store) CreateCourse(c model.Course) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO courses (name, teacher_id) VALUES (?, ?)`,
		c.Name, c.TeacherID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetCourse returns a course by ID.
func (s *Store) GetCourse(id int64) (model.Course, error) {
	var c model.Course
	err := s.db.QueryRow(
		`SELECT id, name, teacher_id FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.TeacherID)
	return c, err
}

// GetCourseByIDAndTeacher returns a course only if it is taught by the
// given teacher. Returns nil when the course is missing or owned by
// someone else.
func (s *Store) GetCourseByIDAndTeacher(courseID, teacherID int64) (*model.Course, error) {
	var c model.Course
	err := s.db.QueryRow(
		`SELECT id, name, teacher_id FROM courses WHERE id = ? AND teacher_id = ?`,
		courseID, teacherID,
	).Scan(&c.ID, &c.Name, &c.TeacherID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Enroll adds a student to a course roster. Enrolling twice is a no-op.
func (s *Store) Enroll(studentID, courseID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO enrollments (student_id, course_id) VALUES (?, ?)`,
		studentID, courseID,
	)
	return err
}

// IsEnrolled reports whether a student is enrolled in a course.
func (s *Store) IsEnrolled(studentID, courseID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM enrollments WHERE student_id = ? AND course_id = ?`,
		studentID, courseID,
	).Scan(&n)
	return n > 0, err
}

// CreateTopic inserts a schedule entry.
func (s *Store) CreateTopic(t model.Topic) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO topics (course_id, name, description, due_date) VALUES (?, ?, ?, ?)`,
		t.CourseID, t.Name, t.Description, t.DueDate.Format(time.DateOnly),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CreateTopics inserts a batch of schedule entries in one transaction.
func (s *Store) CreateTopics(topics []model.Topic) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range topics {
		_, err := tx.Exec(
			`INSERT INTO topics (course_id, name, description, due_date) VALUES (?, ?, ?, ?)`,
			t.CourseID, t.Name, t.Description, t.DueDate.Format(time.DateOnly),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetTopic returns a topic by ID.
func (s *Store) GetTopic(id int64) (model.Topic, error) {
	var t model.Topic
	var due string
	err := s.db.QueryRow(
		`SELECT id, course_id, name, description, due_date FROM topics WHERE id = ?`, id,
	).Scan(&t.ID, &t.CourseID, &t.Name, &t.Description, &due)
	if err != nil {
		return t, err
	}
	t.DueDate, err = time.Parse(time.DateOnly, due)
	return t, err
}

// GetTopicByIDAndTeacher returns a topic only if its course is taught by
// the given teacher. Returns nil when missing or owned by someone else.
func (s *Store) GetTopicByIDAndTeacher(topicID, teacherID int64) (*model.Topic, error) {
	var t model.Topic
	var due string
	err := s.db.QueryRow(
		`SELECT t.id, t.course_id, t.name, t.description, t.due_date
		 FROM topics t JOIN courses c ON c.id = t.course_id
		 WHERE t.id = ? AND c.teacher_id = ?`, topicID, teacherID,
	).Scan(&t.ID, &t.CourseID, &t.Name, &t.Description, &due)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.DueDate, err = time.Parse(time.DateOnly, due)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTopicsForCourse returns a course's schedule ordered by due date.
func (s *Store) ListTopicsForCourse(courseID int64) ([]model.Topic, error) {
	rows, err := s.db.Query(
		`SELECT id, course_id, name, description, due_date
		 FROM topics WHERE course_id = ? ORDER BY due_date, id`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		var due string
		if err := rows.Scan(&t.ID, &t.CourseID, &t.Name, &t.Description, &due); err != nil {
			return nil, err
		}
		if t.DueDate, err = time.Parse(time.DateOnly, due); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// CreateExam inserts an exam.
func (s *Store) CreateExam(e model.Exam) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO exams (topic_id, title, status, grading_instructions) VALUES (?, ?, ?, ?)`,
		e.TopicID, e.Title, e.Status, e.GradingInstructions,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CreateExamDraft creates a draft exam and its questions in one transaction.
func (s *Store) CreateExamDraft(topicID int64, title string, questionTexts []string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO exams (topic_id, title, status) VALUES (?, ?, 'draft')`,
		topicID, title,
	)
	if err != nil {
		return 0, err
	}
	examID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, text := range questionTexts {
		_, err := tx.Exec(
			`INSERT INTO questions (exam_id, text, marks) VALUES (?, ?, 1)`,
			examID, text,
		)
		if err != nil {
			return 0, err
		}
	}

	return examID, tx.Commit()
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(id int64) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRow(
		`SELECT id, topic_id, title, status, grading_instructions FROM exams WHERE id = ?`, id,
	).Scan(&e.ID, &e.TopicID, &e.Title, &e.Status, &e.GradingInstructions)
	return e, err
}

// PublishExam transitions an exam to published with the given instructions.
func (s *Store) PublishExam(examID int64, instructions string) error {
	_, err := s.db.Exec(
		`UPDATE exams SET status = 'published', grading_instructions = ? WHERE id = ?`,
		instructions, examID,
	)
	return err
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO questions (exam_id, text, model_answer, marks) VALUES (?, ?, ?, ?)`,
		q.ExamID, q.Text, q.ModelAnswer, q.Marks,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetQuestionsForExam returns an exam's questions in their defined order.
func (s *Store) GetQuestionsForExam(examID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, text, model_answer, marks FROM questions WHERE exam_id = ? ORDER BY id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.ModelAnswer, &q.Marks); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateSubmission creates a submission with its answers in one transaction.
func (s *Store) CreateSubmission(studentID, examID int64, answers []model.AnswerInput) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO submissions (student_id, exam_id, submitted_at) VALUES (?, ?, ?)`,
		studentID, examID, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	submissionID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, a := range answers {
		_, err := tx.Exec(
			`INSERT INTO answers (submission_id, question_id, answer_text) VALUES (?, ?, ?)`,
			submissionID, a.QuestionID, a.Text,
		)
		if err != nil {
			return 0, err
		}
	}

	return submissionID, tx.Commit()
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(id int64) (model.Submission, error) {
	var sub model.Submission
	var score sql.NullFloat64
	var feedback sql.NullString
	err := s.db.QueryRow(
		`SELECT id, student_id, exam_id, submitted_at, overall_score, overall_feedback
		 FROM submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.StudentID, &sub.ExamID, &sub.SubmittedAt, &score, &feedback)
	if err != nil {
		return sub, err
	}
	if score.Valid {
		sub.OverallScore = &score.Float64
	}
	if feedback.Valid {
		sub.OverallFeedback = &feedback.String
	}
	return sub, nil
}

// GetSubmissionByStudentAndExam returns the student's submission for an
// exam, or nil if none exists.
func (s *Store) GetSubmissionByStudentAndExam(studentID, examID int64) (*model.Submission, error) {
	var sub model.Submission
	var score sql.NullFloat64
	var feedback sql.NullString
	err := s.db.QueryRow(
		`SELECT id, student_id, exam_id, submitted_at, overall_score, overall_feedback
		 FROM submissions WHERE student_id = ? AND exam_id = ?`, studentID, examID,
	).Scan(&sub.ID, &sub.StudentID, &sub.ExamID, &sub.SubmittedAt, &score, &feedback)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if score.Valid {
		sub.OverallScore = &score.Float64
	}
	if feedback.Valid {
		sub.OverallFeedback = &feedback.String
	}
	return &sub, nil
}

// GetAnswersForSubmission returns a submission's answers paired with their
// questions, ordered by question.
func (s *Store) GetAnswersForSubmission(submissionID int64) ([]model.AnswerView, error) {
	rows, err := s.db.Query(
		`SELECT a.id, a.submission_id, a.question_id, a.answer_text, a.feedback, a.error_type,
		        q.id, q.exam_id, q.text, q.model_answer, q.marks
		 FROM answers a JOIN questions q ON q.id = a.question_id
		 WHERE a.submission_id = ? ORDER BY q.id`, submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var views []model.AnswerView
	for rows.Next() {
		var v model.AnswerView
		var feedback, errType sql.NullString
		err := rows.Scan(
			&v.Answer.ID, &v.Answer.SubmissionID, &v.Answer.QuestionID, &v.Answer.Text,
			&feedback, &errType,
			&v.Question.ID, &v.Question.ExamID, &v.Question.Text, &v.Question.ModelAnswer, &v.Question.Marks,
		)
		if err != nil {
			return nil, err
		}
		if feedback.Valid {
			v.Answer.Feedback = &feedback.String
		}
		if errType.Valid {
			et := model.ErrorType(errType.String)
			v.Answer.ErrorType = &et
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// GetExamGradingView loads the exam, its topic, and every submission with
// answers and question texts as one materialized aggregate.
func (s *Store) GetExamGradingView(examID int64) (*model.ExamGradingView, error) {
	exam, err := s.GetExam(examID)
	if err != nil {
		return nil, err
	}
	topic, err := s.GetTopic(exam.TopicID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, student_id, exam_id, submitted_at, overall_score, overall_feedback
		 FROM submissions WHERE exam_id = ? ORDER BY id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		var score sql.NullFloat64
		var feedback sql.NullString
		if err := rows.Scan(&sub.ID, &sub.StudentID, &sub.ExamID, &sub.SubmittedAt, &score, &feedback); err != nil {
			return nil, err
		}
		if score.Valid {
			sub.OverallScore = &score.Float64
		}
		if feedback.Valid {
			sub.OverallFeedback = &feedback.String
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	view := &model.ExamGradingView{Exam: exam, Topic: topic}
	for _, sub := range subs {
		answers, err := s.GetAnswersForSubmission(sub.ID)
		if err != nil {
			return nil, err
		}
		view.Submissions = append(view.Submissions, model.SubmissionView{
			Submission: sub,
			Answers:    answers,
		})
	}
	return view, nil
}

// SaveSubmissionGrades writes a submission's overall score and feedback
// together with all of its answers' graded fields in one transaction.
// Either the whole submission commits or none of it does.
func (s *Store) SaveSubmissionGrades(g model.SubmissionGrades) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range g.Answers {
		_, err := tx.Exec(
			`UPDATE answers SET feedback = ?, error_type = ? WHERE id = ?`,
			a.Feedback, a.ErrorType, a.AnswerID,
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(
		`UPDATE submissions SET overall_score = ?, overall_feedback = ? WHERE id = ?`,
		g.OverallScore, g.OverallFeedback, g.SubmissionID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}
