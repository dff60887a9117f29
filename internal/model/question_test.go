package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPublicProjectionStripsKey(t *testing.T) {
	q := Question{
		ID:            5,
		Subject:       "Mathematics",
		Type:          QuestionTypePattern,
		Difficulty:    "easy",
		Prompt:        "2, 4, 8, 16, ...?",
		Options:       []string{"24", "32"},
		CorrectAnswer: 1,
		Explanation:   "Each term doubles.",
	}

	raw, err := json.Marshal(q.Public())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	body := string(raw)
	if strings.Contains(body, "correct_answer") {
		t.Fatalf("public projection leaks the answer key: %s", body)
	}
	if strings.Contains(body, "explanation") {
		t.Fatalf("public projection leaks the explanation: %s", body)
	}
	if !strings.Contains(body, "prompt") {
		t.Fatalf("public projection lost the prompt: %s", body)
	}
}

func TestAnswerMapWireShape(t *testing.T) {
	raw, err := json.Marshal(AnswerMap{12: 1, 15: 3})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded AnswerMap
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded[12] != 1 || decoded[15] != 3 {
		t.Fatalf("round trip lost data: %v", decoded)
	}
}

func TestSessionPresented(t *testing.T) {
	s := TestSession{QuestionIDs: []int64{1, 2, 3}}

	if !s.Presented(2) {
		t.Fatal("question 2 was presented")
	}
	if s.Presented(99) {
		t.Fatal("question 99 was never presented")
	}
}
