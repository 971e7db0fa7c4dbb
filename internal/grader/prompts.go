package grader

import (
	"fmt"
	"strings"
	"time"
)

const summarySystemPrompt = "You are a teaching assistant writing overall feedback for a graded exam submission. " +
	"Write 2-4 encouraging but honest sentences for the student, pointing out the main strengths " +
	"and the most important area to work on. Respond with plain text only."

func buildGradeSystemPrompt(req GradeRequest) string {
	var sb strings.Builder
	sb.WriteString("You are an exam grader. A student answered the following question:\n\n")
	sb.WriteString("QUESTION: " + req.QuestionText + "\n\n")

	if req.GradingRules != "" {
		sb.WriteString("GRADING INSTRUCTIONS FROM THE TEACHER:\n" + req.GradingRules + "\n\n")
	}

	sb.WriteString("The student's answer is the next message.\n\n")
	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("- Score the answer on a scale from 0 to 10.\n")
	sb.WriteString("- Write brief, constructive feedback for the student.\n")
	sb.WriteString("- Classify the answer with exactly one error type:\n")
	sb.WriteString("  correct, conceptual, procedural, interpretational, or incomplete.\n")
	sb.WriteString("  Use \"correct\" only when the answer deserves full or near-full credit.\n")
	sb.WriteString("\nRespond ONLY with a JSON object with these fields:\n")
	sb.WriteString(`{"score": <integer 0 to 10>, "feedback": "<brief feedback>", "error_type": "<error type>"}`)
	sb.WriteString("\n")

	return sb.String()
}

func buildSummaryPrompt(perAnswer []AnswerSummary, overallScore float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "OVERALL SCORE: %.2f out of 10\n\nPER-QUESTION RESULTS:\n", overallScore)
	for i, a := range perAnswer {
		fmt.Fprintf(&sb, "%d. QUESTION: %s\n   ERROR TYPE: %s\n   FEEDBACK: %s\n", i+1, a.Question, a.ErrorType, a.Feedback)
	}
	return sb.String()
}

func buildQuestionGenPrompt(courseName, topicName string, n int) string {
	var sb strings.Builder
	sb.WriteString("You are an expert exam author for the course \"" + courseName + "\".\n")
	fmt.Fprintf(&sb, "Write %d open-ended exam questions about the topic \"%s\".\n", n, topicName)
	sb.WriteString("- Questions must require free-text answers, not multiple choice.\n")
	sb.WriteString("- Cover the topic broadly, from fundamentals to application.\n")
	sb.WriteString("- Respond ONLY with a JSON array of question strings.\n")
	sb.WriteString("- Do not include any text or markdown formatting before or after the JSON array.\n")
	return sb.String()
}

func buildSchedulePrompt(start time.Time) string {
	var sb strings.Builder
	sb.WriteString("You are an expert curriculum designer. The next message is a course syllabus. ")
	sb.WriteString("Break it down into distinct, sequential topics for a 12-week course.\n")
	sb.WriteString("- Provide a logical name for each topic.\n")
	sb.WriteString("- Provide a brief one-sentence description for each topic.\n")
	fmt.Fprintf(&sb, "- Distribute the topics evenly, assigning a realistic end_date for each, starting from %s.\n", start.Format(time.DateOnly))
	sb.WriteString("- Respond with ONLY a valid JSON array of objects. Each object must have keys: ")
	sb.WriteString(`"topic_name" (string), "topic_description" (string), "end_date" (string in YYYY-MM-DD format).` + "\n")
	sb.WriteString("- Do not include any text or markdown formatting before or after the JSON array.\n")
	return sb.String()
}
