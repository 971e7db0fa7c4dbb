// Package grading batch-grades ungraded exam submissions by fanning out
// one evaluation call per answer and aggregating the results.
package grading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/mkarlsen/classpilot/internal/grader"
	"github.com/mkarlsen/classpilot/internal/i18n"
	"github.com/mkarlsen/classpilot/internal/model"

	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrent = 4

// AnswerGrader is the slice of the evaluation client the orchestrator needs.
type AnswerGrader interface {
	GradeAnswer(ctx context.Context, req grader.GradeRequest) (*grader.GradeResult, error)
	Summarize(ctx context.Context, perAnswer []grader.AnswerSummary, overallScore float64) (string, error)
}

// GradeStore is the slice of the store the orchestrator needs.
type GradeStore interface {
	GetExamGradingView(examID int64) (*model.ExamGradingView, error)
	SaveSubmissionGrades(g model.SubmissionGrades) error
}

// Orchestrator grades all ungraded submissions of an exam.
type Orchestrator struct {
	store         GradeStore
	grader        AnswerGrader
	maxConcurrent int
}

// New creates an Orchestrator. maxConcurrent bounds the number of
// in-flight evaluation calls per submission; 0 selects the default.
func New(s GradeStore, g AnswerGrader, maxConcurrent int) *Orchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Orchestrator{store: s, grader: g, maxConcurrent: maxConcurrent}
}

// GradeAllUngraded grades every ungraded submission of the exam and
// returns how many submissions transitioned to graded. Re-invocation is
// idempotent: already graded submissions are skipped. A failure grading
// or persisting one submission does not stop the others.
func (o *Orchestrator) GradeAllUngraded(ctx context.Context, examID int64) (int, error) {
	view, err := o.store.GetExamGradingView(examID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: exam %d does not exist", model.ErrInvalidExamState, examID)
	}
	if err != nil {
		return 0, fmt.Errorf("load exam %d: %w", examID, err)
	}
	if view.Exam.Status != model.ExamPublished {
		return 0, fmt.Errorf("%w: exam %d is not published", model.ErrInvalidExamState, examID)
	}
	if strings.TrimSpace(view.Exam.GradingInstructions) == "" {
		return 0, fmt.Errorf("%w: exam %d has no grading instructions", model.ErrInvalidExamState, examID)
	}

	var ungraded []model.SubmissionView
	for _, sv := range view.Submissions {
		if !sv.Submission.Graded() {
			ungraded = append(ungraded, sv)
		}
	}
	if len(ungraded) == 0 {
		slog.Info("no ungraded submissions", "exam_id", examID)
		return 0, nil
	}

	slog.Info("grading submissions",
		"exam_id", examID,
		"ungraded", len(ungraded),
		"total", len(view.Submissions),
	)

	graded := 0
	for _, sv := range ungraded {
		if err := ctx.Err(); err != nil {
			return graded, err
		}
		if err := o.gradeSubmission(ctx, view.Exam, sv); err != nil {
			if ctx.Err() != nil {
				// In-flight work is abandoned, nothing was persisted
				// for this submission.
				return graded, ctx.Err()
			}
			slog.Error("failed to grade submission",
				"submission_id", sv.Submission.ID, "error", err)
			continue
		}
		graded++
	}

	slog.Info("grading finished", "exam_id", examID, "graded", graded)
	return graded, nil
}

// gradeSubmission grades one submission: concurrent per-answer calls,
// joined before aggregation, then a single transactional write.
func (o *Orchestrator) gradeSubmission(ctx context.Context, exam model.Exam, sv model.SubmissionView) error {
	sub := sv.Submission

	// The answer set should never be empty per the submission invariant;
	// grade as an empty submission rather than fail.
	if len(sv.Answers) == 0 {
		return o.store.SaveSubmissionGrades(model.SubmissionGrades{
			SubmissionID:    sub.ID,
			OverallScore:    0,
			OverallFeedback: i18n.T(ctx, "EmptySubmissionFeedback"),
		})
	}

	type outcome struct {
		grade model.AnswerGrade
		score int
	}
	// Indexed by answer position so results map back to the answer they
	// belong to regardless of completion order.
	outcomes := make([]outcome, len(sv.Answers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrent)
	for i, av := range sv.Answers {
		i, av := i, av
		g.Go(func() error {
			res, err := o.grader.GradeAnswer(gctx, grader.GradeRequest{
				QuestionText: av.Question.Text,
				AnswerText:   av.Answer.Text,
				GradingRules: exam.GradingInstructions,
			})
			if err != nil {
				slog.Warn("answer grading failed",
					"submission_id", sub.ID, "answer_id", av.Answer.ID, "error", err)
				outcomes[i] = outcome{grade: model.AnswerGrade{
					AnswerID:  av.Answer.ID,
					Feedback:  i18n.T(ctx, "FailedAnswerFeedback"),
					ErrorType: model.ErrorSystem,
				}}
				return nil
			}
			outcomes[i] = outcome{
				grade: model.AnswerGrade{
					AnswerID:  av.Answer.ID,
					Feedback:  res.Feedback,
					ErrorType: res.ErrorType,
				},
				score: res.Score,
			}
			return nil
		})
	}
	// Goroutines never return errors; per-answer failures are recorded
	// in place so one bad call cannot block the rest.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	// Scoring policy: a failed grading call contributes 0 to the total
	// but stays in the denominator, so failures dilute the mean.
	total := 0
	grades := make([]model.AnswerGrade, len(outcomes))
	summaries := make([]grader.AnswerSummary, len(outcomes))
	for i, oc := range outcomes {
		total += oc.score
		grades[i] = oc.grade
		summaries[i] = grader.AnswerSummary{
			Question:  sv.Answers[i].Question.Text,
			Feedback:  oc.grade.Feedback,
			ErrorType: oc.grade.ErrorType,
		}
	}
	overall := round2(float64(total) / float64(len(outcomes)))

	feedback, err := o.grader.Summarize(ctx, summaries, overall)
	if err != nil {
		slog.Warn("summarization failed, using fallback",
			"submission_id", sub.ID, "error", err)
		feedback = i18n.T(ctx, "FallbackOverallFeedback")
	}

	return o.store.SaveSubmissionGrades(model.SubmissionGrades{
		SubmissionID:    sub.ID,
		OverallScore:    overall,
		OverallFeedback: feedback,
		Answers:         grades,
	})
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
