package service

import (
	"testing"

	"github.com/aasprep/practest-backend/internal/model"
)

func q(id int64, correct int) model.Question {
	return model.Question{
		ID:            id,
		Subject:       "Mathematics",
		Type:          model.QuestionTypeMultipleChoice,
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: correct,
	}
}

func TestScoreAnswers(t *testing.T) {
	bank := []model.Question{q(1, 0), q(2, 1), q(3, 2)}

	tests := []struct {
		name        string
		answers     model.AnswerMap
		wantScore   int
		wantMatched int
	}{
		{"all correct", model.AnswerMap{1: 0, 2: 1, 3: 2}, 3, 3},
		{"all wrong", model.AnswerMap{1: 1, 2: 0, 3: 0}, 0, 3},
		{"partial", model.AnswerMap{1: 0, 2: 0}, 1, 2},
		{"empty", model.AnswerMap{}, 0, 0},
		{"dangling id ignored", model.AnswerMap{99: 0}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, matched := scoreAnswers(tt.answers, bank)
			if score != tt.wantScore || matched != tt.wantMatched {
				t.Fatalf("scoreAnswers = (%d, %d), want (%d, %d)", score, matched, tt.wantScore, tt.wantMatched)
			}
		})
	}
}

func TestScoreNeverExceedsMatched(t *testing.T) {
	bank := []model.Question{q(1, 0), q(2, 1)}
	answers := model.AnswerMap{1: 0, 2: 1, 3: 0, 4: 1}

	score, matched := scoreAnswers(answers, bank)
	if score > matched {
		t.Fatalf("score %d exceeds matched %d", score, matched)
	}
	if matched != 2 {
		t.Fatalf("matched = %d, want 2", matched)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, total, want int
	}{
		{1, 1, 100},
		{0, 1, 0},
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{7, 8, 88},
	}

	for _, tt := range tests {
		if got := percentage(tt.score, tt.total); got != tt.want {
			t.Fatalf("percentage(%d, %d) = %d, want %d", tt.score, tt.total, got, tt.want)
		}
	}
}
