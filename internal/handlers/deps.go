package handlers

import (
	"github.com/google/uuid"

	"ai-portraits-backend/internal/astria"
	"ai-portraits-backend/internal/models"
	"ai-portraits-backend/internal/resend"
)

// Handler dependencies, satisfied by the concrete clients in
// internal/supabase, internal/astria and internal/resend. Kept as interfaces
// so handler tests can run against mocks.

type OrderStore interface {
	CreateOrder(order *models.Order) error
	ActivateOrder(orderID, tuneID string) error
	GetOrder(orderID string) (*models.Order, error)
	GetOrderByTuneID(tuneID string) (*models.Order, error)
	ClaimPrompts(orderID string, prompts []string) (bool, error)
	AdvanceToPromptsSubmitted(orderID string) (bool, error)
	CompleteOrder(orderID string, resultURLs []string) (bool, error)
	RecordOrderError(orderID, errorMsg string) error
	CreateOrderPrompts(prompts []*models.OrderPrompt) error
	GetOrderPrompts(orderID string) ([]models.OrderPrompt, error)
	GetPromptByID(promptID uuid.UUID) (*models.OrderPrompt, error)
	MarkPromptSubmitted(promptID uuid.UUID, providerPromptID string) error
}

type ImageStore interface {
	ListOrderImages(orderID string) ([]string, error)
	DownloadFile(storagePath string) ([]byte, error)
}

type TuneClient interface {
	CreateTune(req astria.CreateTuneRequest) (*astria.Tune, error)
	SubmitPrompt(tuneID string, req astria.PromptRequest) (*astria.PromptResponse, error)
}

type EmailClient interface {
	SendEmail(email resend.Email) error
}

type EventPublisher interface {
	PublishOrderEvent(orderID string, event string, payload map[string]interface{}) error
}
