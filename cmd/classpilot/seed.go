package main

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkarlsen/classpilot/internal/model"
	"github.com/mkarlsen/classpilot/internal/store"
)

func runSeed(cmd *cobra.Command, _ []string) error {
	v, _, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	path := v.GetString("data")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", path, err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	stored, err := db.GetImportedFileHash(path)
	if err != nil {
		return fmt.Errorf("check imported file: %w", err)
	}
	if stored == hash {
		slog.Info("fixture already imported, skipping", "path", path)
		return nil
	}
	if stored != "" {
		slog.Warn("fixture changed since last import, skipping",
			"path", path, "imported_hash", stored, "current_hash", hash)
		return nil
	}

	var fixture model.SeedFile
	if err := json.Unmarshal(data, &fixture); err != nil {
		return fmt.Errorf("parse fixture %s: %w", path, err)
	}

	if err := applySeed(db, fixture); err != nil {
		return fmt.Errorf("apply fixture %s: %w", path, err)
	}
	if err := db.SetImportedFileHash(path, hash); err != nil {
		return fmt.Errorf("record imported file: %w", err)
	}

	totalUsers, err := db.UserCount()
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	slog.Info("fixture imported", "path", path,
		"users", len(fixture.Users),
		"courses", len(fixture.Courses),
		"exams", len(fixture.Exams),
		"submissions", len(fixture.Submissions),
		"total_users", totalUsers,
	)
	return nil
}

// applySeed inserts fixture records in dependency order, resolving names
// to IDs as it goes.
func applySeed(db *store.Store, f model.SeedFile) error {
	users := make(map[string]int64, len(f.Users))
	for _, u := range f.Users {
		// Fixtures may share users across files; reuse on username match.
		existing, err := db.GetUserByUsername(u.Username)
		if err != nil {
			return fmt.Errorf("look up user %s: %w", u.Username, err)
		}
		if existing != nil {
			users[u.Username] = existing.ID
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		role := u.Role
		if role == "" {
			role = model.UserRoleStudent
		}
		id, err := db.CreateUser(model.User{
			Username:     u.Username,
			DisplayName:  u.DisplayName,
			PasswordHash: string(hash),
			Role:         role,
		})
		if err != nil {
			return fmt.Errorf("create user %s: %w", u.Username, err)
		}
		users[u.Username] = id
	}

	courses := make(map[string]int64, len(f.Courses))
	topics := make(map[string]int64)
	for _, c := range f.Courses {
		teacherID, ok := users[c.Teacher]
		if !ok {
			return fmt.Errorf("course %s: unknown teacher %s", c.Name, c.Teacher)
		}
		courseID, err := db.CreateCourse(model.Course{Name: c.Name, TeacherID: teacherID})
		if err != nil {
			return fmt.Errorf("create course %s: %w", c.Name, err)
		}
		courses[c.Name] = courseID

		for _, t := range c.Topics {
			due, err := time.Parse(time.DateOnly, t.DueDate)
			if err != nil {
				return fmt.Errorf("topic %s: bad due date %q: %w", t.Name, t.DueDate, err)
			}
			topicID, err := db.CreateTopic(model.Topic{
				CourseID:    courseID,
				Name:        t.Name,
				Description: t.Description,
				DueDate:     due,
			})
			if err != nil {
				return fmt.Errorf("create topic %s: %w", t.Name, err)
			}
			topics[c.Name+"/"+t.Name] = topicID
		}

		for _, s := range c.Students {
			studentID, ok := users[s]
			if !ok {
				return fmt.Errorf("course %s: unknown student %s", c.Name, s)
			}
			if err := db.Enroll(studentID, courseID); err != nil {
				return fmt.Errorf("enroll %s in %s: %w", s, c.Name, err)
			}
		}
	}

	exams := make(map[string]int64, len(f.Exams))
	examQuestions := make(map[string][]int64, len(f.Exams))
	for _, e := range f.Exams {
		topicID, ok := topics[e.Course+"/"+e.Topic]
		if !ok {
			return fmt.Errorf("exam %s: unknown topic %s in course %s", e.Title, e.Topic, e.Course)
		}
		status := e.Status
		if status == "" {
			status = model.ExamDraft
		}
		examID, err := db.CreateExam(model.Exam{
			TopicID:             topicID,
			Title:               e.Title,
			Status:              status,
			GradingInstructions: e.GradingInstructions,
		})
		if err != nil {
			return fmt.Errorf("create exam %s: %w", e.Title, err)
		}
		exams[e.Title] = examID

		for _, q := range e.Questions {
			marks := q.Marks
			if marks == 0 {
				marks = 1
			}
			questionID, err := db.InsertQuestion(model.Question{
				ExamID:      examID,
				Text:        q.Text,
				ModelAnswer: q.ModelAnswer,
				Marks:       marks,
			})
			if err != nil {
				return fmt.Errorf("create question for exam %s: %w", e.Title, err)
			}
			examQuestions[e.Title] = append(examQuestions[e.Title], questionID)
		}
	}

	for _, sub := range f.Submissions {
		studentID, ok := users[sub.Student]
		if !ok {
			return fmt.Errorf("submission: unknown student %s", sub.Student)
		}
		examID, ok := exams[sub.Exam]
		if !ok {
			return fmt.Errorf("submission: unknown exam %s", sub.Exam)
		}
		questionIDs := examQuestions[sub.Exam]
		if len(sub.Answers) != len(questionIDs) {
			return fmt.Errorf("submission by %s for %s: %d answers for %d questions",
				sub.Student, sub.Exam, len(sub.Answers), len(questionIDs))
		}
		answers := make([]model.AnswerInput, len(sub.Answers))
		for i, text := range sub.Answers {
			answers[i] = model.AnswerInput{QuestionID: questionIDs[i], Text: text}
		}
		if _, err := db.CreateSubmission(studentID, examID, answers); err != nil {
			return fmt.Errorf("create submission by %s for %s: %w", sub.Student, sub.Exam, err)
		}
	}

	return nil
}
