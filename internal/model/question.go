package model

// QuestionType classifies how a question is rendered by clients.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypePattern        QuestionType = "pattern"
	QuestionTypeGeometry       QuestionType = "geometry"
)

// Question is a bank entry including its answer key. Immutable once created.
// Invariant: CorrectAnswer is a valid index into Options (2-5 entries).
type Question struct {
	ID            int64        `json:"id"`
	Subject       string       `json:"subject"`
	Type          QuestionType `json:"type"`
	Difficulty    string       `json:"difficulty"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options"`
	CorrectAnswer int          `json:"correct_answer"`
	Explanation   string       `json:"explanation"`
	ImageURL      *string      `json:"image_url,omitempty"`
}

// PublicQuestion is the outward-facing projection sent to test takers.
// The answer key and explanation never leave the server through this view;
// only the scoring path and the results endpoint see them.
type PublicQuestion struct {
	ID         int64        `json:"id"`
	Subject    string       `json:"subject"`
	Type       QuestionType `json:"type"`
	Difficulty string       `json:"difficulty"`
	Prompt     string       `json:"prompt"`
	Options    []string     `json:"options"`
	ImageURL   *string      `json:"image_url,omitempty"`
}

// Public strips the answer key from a question.
func (q *Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Subject:    q.Subject,
		Type:       q.Type,
		Difficulty: q.Difficulty,
		Prompt:     q.Prompt,
		Options:    q.Options,
		ImageURL:   q.ImageURL,
	}
}

// PublicQuestions maps a bank slice to its public projection.
func PublicQuestions(questions []Question) []PublicQuestion {
	out := make([]PublicQuestion, 0, len(questions))
	for i := range questions {
		out = append(out, questions[i].Public())
	}
	return out
}

// CreateQuestionRequest is the payload for importing a question into the bank.
type CreateQuestionRequest struct {
	Subject     string   `json:"subject" binding:"required,min=1,max=100"`
	Type        string   `json:"type" binding:"required,oneof=multiple_choice pattern geometry"`
	Difficulty  string   `json:"difficulty" binding:"required,oneof=easy medium hard"`
	Prompt      string   `json:"prompt" binding:"required,min=1,max=2000"`
	Options     []string `json:"options" binding:"required,min=2,max=5,dive,required"`
	Correct     int      `json:"correct_answer" binding:"min=0"`
	Explanation string   `json:"explanation" binding:"max=2000"`
	ImageURL    *string  `json:"image_url" binding:"omitempty,max=500"`
}
