package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aasprep/practest-backend/internal/config"
	"github.com/aasprep/practest-backend/internal/database"
	"github.com/aasprep/practest-backend/internal/logger"
	"github.com/aasprep/practest-backend/internal/model"
	"github.com/aasprep/practest-backend/internal/repository"
)

// seedQuestion mirrors the question bank import file format. The wire names
// match CreateQuestionRequest so the same JSON works against the API.
type seedQuestion struct {
	Subject     string   `json:"subject"`
	Type        string   `json:"type"`
	Difficulty  string   `json:"difficulty"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct_answer"`
	Explanation string   `json:"explanation"`
	ImageURL    *string  `json:"image_url"`
}

func main() {
	var file string
	flag.StringVar(&file, "file", "seed/questions.json", "Path to questions JSON file")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)

	raw, err := os.ReadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Failed to read questions file")
	}

	var seeds []seedQuestion
	if err := json.Unmarshal(raw, &seeds); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse questions file")
	}

	fmt.Printf("=== Seeding %d Questions ===\n", len(seeds))

	successCount := 0
	for i, s := range seeds {
		q := &model.Question{
			Subject:       s.Subject,
			Type:          model.QuestionType(s.Type),
			Difficulty:    s.Difficulty,
			Prompt:        s.Prompt,
			Options:       s.Options,
			CorrectAnswer: s.Correct,
			Explanation:   s.Explanation,
			ImageURL:      s.ImageURL,
		}

		if err := questionRepo.Create(ctx, q); err != nil {
			fmt.Printf("Error creating question %d (%s): %v\n", i+1, s.Subject, err)
			continue
		}
		successCount++
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d questions.\n", successCount, len(seeds))
}
