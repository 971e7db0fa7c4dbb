package main

import (
	"context"
	"fmt"
	"io"
	"time"

	appI18n "github.com/mkarlsen/classpilot/internal/i18n"
	"github.com/mkarlsen/classpilot/internal/model"
)

func renderCourseReport(ctx context.Context, w io.Writer, report *model.CourseReport) {
	fmt.Fprintln(w, appI18n.Td(ctx, "ReportCourseTitle", map[string]any{"Name": report.CourseName}))
	fmt.Fprintf(w, "%s: %d\n", appI18n.T(ctx, "ReportEnrollment"), report.TotalEnrollment)
	fmt.Fprintf(w, "%s: %d\n", appI18n.T(ctx, "ReportSubmissions"), report.TotalSubmissions)

	if report.AverageCourseScore != nil {
		fmt.Fprintf(w, "%s: %.2f\n", appI18n.T(ctx, "ReportAverageScore"), *report.AverageCourseScore)
	} else {
		fmt.Fprintf(w, "%s: %s\n", appI18n.T(ctx, "ReportAverageScore"), appI18n.T(ctx, "ReportNoScores"))
	}

	fmt.Fprintf(w, "%s:\n", appI18n.T(ctx, "ReportMisunderstoodTopics"))
	for i, ts := range report.MostMisunderstoodTopics {
		fmt.Fprintf(w, "  %d. %s (%.2f)\n", i+1, ts.TopicName, *ts.AverageScore)
	}

	fmt.Fprintf(w, "%s:\n", appI18n.T(ctx, "ReportErrorTypes"))
	if len(report.CommonErrorTypes) == 0 {
		fmt.Fprintf(w, "  %s\n", appI18n.T(ctx, "ReportNoErrors"))
	}
	for _, ec := range report.CommonErrorTypes {
		fmt.Fprintf(w, "  %s: %d\n", ec.ErrorType, ec.Count)
	}
}

func renderStudentReport(ctx context.Context, w io.Writer, upcoming []model.UpcomingTopic, summary *model.PerformanceSummary) {
	fmt.Fprintf(w, "%s:\n", appI18n.T(ctx, "ReportUpcomingTopics"))
	for _, ut := range upcoming {
		fmt.Fprintf(w, "  %s  %s (%s)\n", ut.DueDate.Format(time.DateOnly), ut.TopicName, ut.CourseName)
	}

	if summary.MostCommonError != nil {
		fmt.Fprintf(w, "%s: %s (%d)\n", appI18n.T(ctx, "ReportMostCommonError"), *summary.MostCommonError, summary.ErrorCount)
	} else {
		fmt.Fprintf(w, "%s: %s\n", appI18n.T(ctx, "ReportMostCommonError"), appI18n.T(ctx, "ReportNoErrors"))
	}
	fmt.Fprintf(w, "%s: %d\n", appI18n.T(ctx, "ReportGradedAnswers"), summary.TotalGradedAnswers)
}
