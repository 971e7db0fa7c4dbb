package model

import "errors"

// Precondition errors. These are fatal to the requested operation and
// never retried.
var (
	// ErrInvalidExamState means the exam is missing, unpublished, or has
	// no grading instructions, so batch grading cannot start.
	ErrInvalidExamState = errors.New("exam is not in a gradable state")

	// ErrNotFound signals a missing record or an ownership mismatch.
	// Callers cannot tell the two cases apart.
	ErrNotFound = errors.New("not found")

	// ErrExamNotAvailable means the exam does not exist or is not published.
	ErrExamNotAvailable = errors.New("exam not found or not published")

	// ErrNotEnrolled means the student is not enrolled in the course the
	// operation targets. A permission error, never an empty result.
	ErrNotEnrolled = errors.New("student is not enrolled in this course")

	// ErrAlreadySubmitted means the student already submitted this exam.
	ErrAlreadySubmitted = errors.New("exam already submitted by this student")

	// ErrAnswerMismatch means the submitted answers do not cover the
	// exam's question set exactly once each.
	ErrAnswerMismatch = errors.New("answers do not match the exam's questions")

	// ErrEmptyInstructions means an exam cannot be published without
	// grading instructions.
	ErrEmptyInstructions = errors.New("grading instructions must not be empty")
)
