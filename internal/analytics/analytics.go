// Package analytics computes course-level and student-level statistical
// reports over persisted grading results. All reports are read-only.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/mkarlsen/classpilot/internal/model"
	"github.com/mkarlsen/classpilot/internal/store"
)

// misunderstoodLimit is how many lowest-scoring topics a course report lists.
const misunderstoodLimit = 3

// upcomingWindow is how far ahead the student schedule report looks.
const upcomingWindow = 14 * 24 * time.Hour

// Engine produces analytics reports from the store.
type Engine struct {
	store *store.Store
}

// New creates an analytics engine.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// CourseAnalytics builds the course report for a teacher's own course.
// A missing course or an ownership mismatch both return ErrNotFound.
// A course with no submissions returns a defined empty report.
func (e *Engine) CourseAnalytics(courseID, teacherID int64) (*model.CourseReport, error) {
	course, err := e.store.GetCourseByIDAndTeacher(courseID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get course %d: %w", courseID, err)
	}
	if course == nil {
		return nil, model.ErrNotFound
	}

	enrollment, err := e.store.EnrollmentCount(courseID)
	if err != nil {
		return nil, fmt.Errorf("count enrollment: %w", err)
	}

	report := &model.CourseReport{
		CourseID:                course.ID,
		CourseName:              course.Name,
		TotalEnrollment:         enrollment,
		MostMisunderstoodTopics: []model.TopicScore{},
		CommonErrorTypes:        []model.ErrorTypeCount{},
	}

	subs, err := e.store.ListSubmissionsForCourse(courseID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	report.TotalSubmissions = len(subs)
	if len(subs) == 0 {
		return report, nil
	}

	// Course average over all non-null overall scores.
	var sum float64
	var scored int
	for _, sub := range subs {
		if sub.OverallScore != nil {
			sum += *sub.OverallScore
			scored++
		}
	}
	if scored > 0 {
		avg := sum / float64(scored)
		report.AverageCourseScore = &avg
	}

	topics, err := e.store.ListTopicsForCourse(courseID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	report.MostMisunderstoodTopics = misunderstoodTopics(topics, subs)

	counts, err := e.store.ErrorTypeCountsForCourse(courseID)
	if err != nil {
		return nil, fmt.Errorf("count error types: %w", err)
	}
	if counts != nil {
		report.CommonErrorTypes = counts
	}

	return report, nil
}

// misunderstoodTopics ranks topics by average submission score and keeps
// the lowest few, ascending. Topics with no scored submissions are left
// out of the ranking.
func misunderstoodTopics(topics []model.Topic, subs []model.CourseSubmission) []model.TopicScore {
	scores := make(map[int64][]float64)
	for _, sub := range subs {
		if sub.OverallScore != nil {
			scores[sub.TopicID] = append(scores[sub.TopicID], *sub.OverallScore)
		}
	}

	var ranked []model.TopicScore
	for _, t := range topics {
		vals := scores[t.ID]
		if len(vals) == 0 {
			continue
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		avg := sum / float64(len(vals))
		ranked = append(ranked, model.TopicScore{
			TopicID:      t.ID,
			TopicName:    t.Name,
			AverageScore: &avg,
		})
	}

	// Stable sort keeps the schedule order for equal averages.
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].AverageScore < *ranked[j].AverageScore
	})
	if len(ranked) > misunderstoodLimit {
		ranked = ranked[:misunderstoodLimit]
	}
	if ranked == nil {
		ranked = []model.TopicScore{}
	}
	return ranked
}

// StudentUpcomingTopics lists topics in the student's enrolled courses
// due within the next two weeks of today, soonest first.
func (e *Engine) StudentUpcomingTopics(studentID int64, today time.Time) ([]model.UpcomingTopic, error) {
	from := today
	to := today.Add(upcomingWindow)
	topics, err := e.store.UpcomingTopicsForStudent(studentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("upcoming topics for student %d: %w", studentID, err)
	}
	return topics, nil
}

// StudentPerformanceSummary finds the student's most frequent non-correct
// error type. TotalGradedAnswers counts every graded answer, "correct"
// included.
func (e *Engine) StudentPerformanceSummary(studentID int64) (*model.PerformanceSummary, error) {
	total, err := e.store.GradedAnswerCountForStudent(studentID)
	if err != nil {
		return nil, fmt.Errorf("count graded answers: %w", err)
	}

	summary := &model.PerformanceSummary{TotalGradedAnswers: total}

	counts, err := e.store.ErrorTypeCountsForStudent(studentID)
	if err != nil {
		return nil, fmt.Errorf("count error types: %w", err)
	}
	if len(counts) > 0 {
		top := counts[0]
		summary.MostCommonError = &top.ErrorType
		summary.ErrorCount = top.Count
	}

	return summary, nil
}
