package model

// SeedFile is the JSON fixture format loaded by the seed command.
// Records reference each other by name rather than ID so fixtures stay
// readable; the loader resolves names while inserting.
type SeedFile struct {
	Users       []SeedUser       `json:"users"`
	Courses     []SeedCourse     `json:"courses"`
	Exams       []SeedExam       `json:"exams"`
	Submissions []SeedSubmission `json:"submissions"`
}

// SeedUser describes a user to create. The password is hashed on insert.
type SeedUser struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Password    string   `json:"password"`
	Role        UserRole `json:"role"`
}

// SeedCourse describes a course, its schedule, and its roster.
type SeedCourse struct {
	Name     string      `json:"name"`
	Teacher  string      `json:"teacher"`
	Topics   []SeedTopic `json:"topics"`
	Students []string    `json:"students"`
}

// SeedTopic describes a schedule entry. DueDate uses YYYY-MM-DD.
type SeedTopic struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

// SeedExam describes an exam attached to a topic by name.
type SeedExam struct {
	Course              string         `json:"course"`
	Topic               string         `json:"topic"`
	Title               string         `json:"title"`
	Status              ExamStatus     `json:"status"`
	GradingInstructions string         `json:"grading_instructions"`
	Questions           []SeedQuestion `json:"questions"`
}

// SeedQuestion describes one question. Marks defaults to 1 when omitted.
type SeedQuestion struct {
	Text        string `json:"text"`
	ModelAnswer string `json:"model_answer"`
	Marks       int    `json:"marks"`
}

// SeedSubmission describes an ungraded submission. Answers are listed in
// the same order as the exam's questions.
type SeedSubmission struct {
	Student string   `json:"student"`
	Exam    string   `json:"exam"`
	Answers []string `json:"answers"`
}
