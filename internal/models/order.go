package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Order statuses. Transitions only ever move forward:
// pending -> training -> prompts_submitted -> completed.
const (
	StatusPending          = "pending"
	StatusTraining         = "training"
	StatusPromptsSubmitted = "prompts_submitted"
	StatusCompleted        = "completed"
)

type Order struct {
	ID           string
	UserName     string
	Email        string
	Category     string
	Gender       string
	TuneID       sql.NullString
	Status       string
	Prompts      []string
	ResultURLs   []string
	ErrorMessage sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderPrompt is one generation prompt submitted against a trained tune.
// Its ID doubles as the correlation token embedded in the generation
// callback URL handed to the provider.
type OrderPrompt struct {
	ID               uuid.UUID
	OrderID          string
	Position         int
	Text             string
	ProviderPromptID sql.NullString
	SubmittedAt      sql.NullTime
	CreatedAt        time.Time
}

var validCategories = map[string]bool{
	"business": true,
	"social":   true,
	"creative": true,
}

var validGenders = map[string]bool{
	"woman": true,
	"man":   true,
}

func ValidCategory(category string) bool {
	return validCategories[category]
}

func ValidGender(gender string) bool {
	return validGenders[gender]
}
