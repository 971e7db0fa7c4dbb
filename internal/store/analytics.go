package store

import (
	"database/sql"
	"time"

	"github.com/mkarlsen/classpilot/internal/model"
)

// EnrollmentCount returns the number of students enrolled in a course.
func (s *Store) EnrollmentCount(courseID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM enrollments WHERE course_id = ?`, courseID,
	).Scan(&n)
	return n, err
}

// ListSubmissionsForCourse returns every submission in a course, joined
// through exams to the topic each exam belongs to.
func (s *Store) ListSubmissionsForCourse(courseID int64) ([]model.CourseSubmission, error) {
	rows, err := s.db.Query(
		`SELECT s.id, s.exam_id, e.topic_id, s.overall_score
		 FROM submissions s
		 JOIN exams e ON e.id = s.exam_id
		 JOIN topics t ON t.id = e.topic_id
		 WHERE t.course_id = ?
		 ORDER BY s.id`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.CourseSubmission
	for rows.Next() {
		var cs model.CourseSubmission
		var score sql.NullFloat64
		if err := rows.Scan(&cs.SubmissionID, &cs.ExamID, &cs.TopicID, &score); err != nil {
			return nil, err
		}
		if score.Valid {
			cs.OverallScore = &score.Float64
		}
		subs = append(subs, cs)
	}
	return subs, rows.Err()
}

// ErrorTypeCountsForCourse counts answers per non-null error type across a
// course, most frequent first. Ties break on error type name so the order
// is stable.
func (s *Store) ErrorTypeCountsForCourse(courseID int64) ([]model.ErrorTypeCount, error) {
	rows, err := s.db.Query(
		`SELECT a.error_type, COUNT(a.error_type)
		 FROM answers a
		 JOIN submissions s ON s.id = a.submission_id
		 JOIN exams e ON e.id = s.exam_id
		 JOIN topics t ON t.id = e.topic_id
		 WHERE t.course_id = ? AND a.error_type IS NOT NULL
		 GROUP BY a.error_type
		 ORDER BY COUNT(a.error_type) DESC, a.error_type`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanErrorTypeCounts(rows)
}

// ErrorTypeCountsForStudent counts a student's answers per non-null error
// type, excluding "correct", most frequent first with stable ties.
func (s *Store) ErrorTypeCountsForStudent(studentID int64) ([]model.ErrorTypeCount, error) {
	rows, err := s.db.Query(
		`SELECT a.error_type, COUNT(a.id)
		 FROM answers a
		 JOIN submissions s ON s.id = a.submission_id
		 WHERE s.student_id = ? AND a.error_type IS NOT NULL AND a.error_type != 'correct'
		 GROUP BY a.error_type
		 ORDER BY COUNT(a.id) DESC, a.error_type`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanErrorTypeCounts(rows)
}

func scanErrorTypeCounts(rows *sql.Rows) ([]model.ErrorTypeCount, error) {
	var counts []model.ErrorTypeCount
	for rows.Next() {
		var c model.ErrorTypeCount
		if err := rows.Scan(&c.ErrorType, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GradedAnswerCountForStudent counts all of a student's answers with any
// non-null error type, "correct" included.
func (s *Store) GradedAnswerCountForStudent(studentID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(a.id)
		 FROM answers a
		 JOIN submissions s ON s.id = a.submission_id
		 WHERE s.student_id = ? AND a.error_type IS NOT NULL`, studentID,
	).Scan(&n)
	return n, err
}

// UpcomingTopicsForStudent returns topics in the student's enrolled
// courses whose due date falls within [from, to], ascending by due date.
func (s *Store) UpcomingTopicsForStudent(studentID int64, from, to time.Time) ([]model.UpcomingTopic, error) {
	rows, err := s.db.Query(
		`SELECT t.name, c.name, t.due_date
		 FROM topics t
		 JOIN courses c ON c.id = t.course_id
		 JOIN enrollments en ON en.course_id = c.id
		 WHERE en.student_id = ? AND t.due_date >= ? AND t.due_date <= ?
		 ORDER BY t.due_date, t.id`,
		studentID, from.Format(time.DateOnly), to.Format(time.DateOnly),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []model.UpcomingTopic
	for rows.Next() {
		var ut model.UpcomingTopic
		var due string
		if err := rows.Scan(&ut.TopicName, &ut.CourseName, &due); err != nil {
			return nil, err
		}
		if ut.DueDate, err = time.Parse(time.DateOnly, due); err != nil {
			return nil, err
		}
		topics = append(topics, ut)
	}
	return topics, rows.Err()
}
