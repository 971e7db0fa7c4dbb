package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkarlsen/classpilot/internal/analytics"
	"github.com/mkarlsen/classpilot/internal/examgen"
	"github.com/mkarlsen/classpilot/internal/grader"
	"github.com/mkarlsen/classpilot/internal/grading"
	appI18n "github.com/mkarlsen/classpilot/internal/i18n"
	"github.com/mkarlsen/classpilot/internal/model"
	"github.com/mkarlsen/classpilot/internal/store"
	"github.com/mkarlsen/classpilot/internal/submission"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "classpilot",
		Short: "AI-assisted exam grading and course analytics",
	}
	root.AddCommand(
		gradeCmd(),
		reportCmd(),
		submitCmd(),
		examCmd(),
		scheduleCmd(),
		seedCmd(),
		exportCmd(),
	)
	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "classpilot.db", "SQLite database path")
	f.StringP("lang", "l", "en", "Output language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for the evaluation service")
	f.String("llm-model", "llama3.2", "Model name for the evaluation service")
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade all ungraded submissions of an exam",
		RunE:  runGrade,
	}
	addCommonFlags(cmd)
	addLLMFlags(cmd)
	f := cmd.Flags()
	f.Int64("exam-id", 0, "Exam to grade (required)")
	f.Int("max-concurrent", 4, "Maximum concurrent evaluation calls per submission")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}

func reportCmd() *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Analytics reports",
	}

	course := &cobra.Command{
		Use:   "course",
		Short: "Course analytics for a teacher's own course",
		RunE:  runReportCourse,
	}
	addCommonFlags(course)
	course.Flags().Int64("course-id", 0, "Course to report on (required)")
	course.Flags().Int64("teacher-id", 0, "Requesting teacher (required)")
	course.Flags().Bool("json", false, "Print the report as JSON")
	_ = course.MarkFlagRequired("course-id")
	_ = course.MarkFlagRequired("teacher-id")

	student := &cobra.Command{
		Use:   "student",
		Short: "Upcoming topics and performance summary for a student",
		RunE:  runReportStudent,
	}
	addCommonFlags(student)
	student.Flags().Int64("student-id", 0, "Student to report on (required)")
	student.Flags().Bool("json", false, "Print the report as JSON")
	_ = student.MarkFlagRequired("student-id")

	report.AddCommand(course, student)
	return report
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a student's answers for an exam",
		RunE:  runSubmit,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.Int64("student-id", 0, "Submitting student (required)")
	f.Int64("exam-id", 0, "Exam being submitted (required)")
	f.String("answers", "", "Path to answers JSON file (required)")
	_ = cmd.MarkFlagRequired("student-id")
	_ = cmd.MarkFlagRequired("exam-id")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func examCmd() *cobra.Command {
	exam := &cobra.Command{
		Use:   "exam",
		Short: "Teacher exam tooling",
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a draft exam with AI-written questions for a topic",
		RunE:  runExamGenerate,
	}
	addCommonFlags(generate)
	addLLMFlags(generate)
	generate.Flags().Int64("topic-id", 0, "Topic to generate an exam for (required)")
	generate.Flags().Int64("teacher-id", 0, "Requesting teacher (required)")
	_ = generate.MarkFlagRequired("topic-id")
	_ = generate.MarkFlagRequired("teacher-id")

	publish := &cobra.Command{
		Use:   "publish",
		Short: "Publish a draft exam with grading instructions",
		RunE:  runExamPublish,
	}
	addCommonFlags(publish)
	publish.Flags().Int64("exam-id", 0, "Exam to publish (required)")
	publish.Flags().Int64("teacher-id", 0, "Requesting teacher (required)")
	publish.Flags().String("instructions", "", "Grading instructions (required)")
	_ = publish.MarkFlagRequired("exam-id")
	_ = publish.MarkFlagRequired("teacher-id")
	_ = publish.MarkFlagRequired("instructions")

	exam.AddCommand(generate, publish)
	return exam
}

func scheduleCmd() *cobra.Command {
	schedule := &cobra.Command{
		Use:   "schedule",
		Short: "Course schedule tooling",
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a course schedule from syllabus text",
		RunE:  runScheduleGenerate,
	}
	addCommonFlags(generate)
	addLLMFlags(generate)
	generate.Flags().Int64("course-id", 0, "Course to schedule (required)")
	generate.Flags().Int64("teacher-id", 0, "Requesting teacher (required)")
	generate.Flags().String("syllabus", "", "Path to syllabus text file (required)")
	_ = generate.MarkFlagRequired("course-id")
	_ = generate.MarkFlagRequired("teacher-id")
	_ = generate.MarkFlagRequired("syllabus")

	schedule.AddCommand(generate)
	return schedule
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a JSON fixture of users, courses, exams, and submissions",
		RunE:  runSeed,
	}
	addCommonFlags(cmd)
	cmd.Flags().String("data", "", "Path to fixture JSON file (required)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an exam's results as JSON",
		RunE:  runExport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.Int64("exam-id", 0, "Exam to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CLASSPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("classpilot")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/classpilot")
	v.AddConfigPath("/etc/classpilot")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	}

	return v
}

// setup wires logging, config, and i18n for a command and returns the
// viper instance plus a context carrying the localizer.
func setup(cmd *cobra.Command) (*viper.Viper, context.Context, error) {
	v := viperForCmd(cmd)
	setupLogging(v)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return nil, nil, fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(lang))
	return v, ctx, nil
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newGrader(ctx context.Context, v *viper.Viper) (*grader.Client, error) {
	client := grader.New(grader.Config{
		BaseURL: v.GetString("llm-url"),
		APIKey:  v.GetString("llm-key"),
		Model:   v.GetString("llm-model"),
	})
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("evaluation service health check: %w", err)
	}
	slog.Info("evaluation service OK",
		"url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	return client, nil
}

func runGrade(cmd *cobra.Command, _ []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newGrader(ctx, v)
	if err != nil {
		return err
	}

	orch := grading.New(db, client, v.GetInt("max-concurrent"))
	count, err := orch.GradeAllUngraded(ctx, v.GetInt64("exam-id"))
	if err != nil {
		return err
	}

	fmt.Println(appI18n.Tp(ctx, "GradedSubmissions", count))
	return nil
}

func runReportCourse(cmd *cobra.Command, _ []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := analytics.New(db)
	report, err := engine.CourseAnalytics(v.GetInt64("course-id"), v.GetInt64("teacher-id"))
	if err != nil {
		return err
	}
	if v.GetBool("json") {
		return printJSON(os.Stdout, report)
	}
	renderCourseReport(ctx, os.Stdout, report)
	return nil
}

func runReportStudent(cmd *cobra.Command, _ []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := analytics.New(db)
	studentID := v.GetInt64("student-id")

	upcoming, err := engine.StudentUpcomingTopics(studentID, time.Now())
	if err != nil {
		return err
	}
	summary, err := engine.StudentPerformanceSummary(studentID)
	if err != nil {
		return err
	}

	if v.GetBool("json") {
		return printJSON(os.Stdout, struct {
			UpcomingTopics     []model.UpcomingTopic     `json:"upcoming_topics"`
			PerformanceSummary *model.PerformanceSummary `json:"performance_summary"`
		}{upcoming, summary})
	}
	renderStudentReport(ctx, os.Stdout, upcoming, summary)
	return nil
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	v, _, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	path := v.GetString("answers")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var answers []model.AnswerInput
	if err := json.Unmarshal(data, &answers); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	svc := submission.New(db)
	sub, err := svc.Create(v.GetInt64("student-id"), v.GetInt64("exam-id"), answers)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, sub)
}

func runExamGenerate(cmd *cobra.Command, _ []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newGrader(ctx, v)
	if err != nil {
		return err
	}

	svc := examgen.New(db, client)
	exam, err := svc.GenerateDraftExam(ctx, v.GetInt64("topic-id"), v.GetInt64("teacher-id"))
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, exam)
}

func runExamPublish(cmd *cobra.Command, _ []string) error {
	v, _, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := examgen.New(db, nil)
	return svc.Publish(v.GetInt64("exam-id"), v.GetInt64("teacher-id"), v.GetString("instructions"))
}

func runScheduleGenerate(cmd *cobra.Command, _ []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newGrader(ctx, v)
	if err != nil {
		return err
	}

	path := v.GetString("syllabus")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	svc := examgen.New(db, client)
	topics, err := svc.GenerateSchedule(ctx, v.GetInt64("course-id"), v.GetInt64("teacher-id"), string(data), time.Now())
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, topics)
}

func runExport(cmd *cobra.Command, _ []string) error {
	v, _, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportExamResults(v.GetInt64("exam-id"))
	if err != nil {
		return fmt.Errorf("export exam results: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return printJSON(w, export)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}
