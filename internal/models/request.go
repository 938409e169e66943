package models

// CreateOrderRequest is the order-creation payload the checkout flow sends
// once payment succeeded and the source photos are uploaded.
type CreateOrderRequest struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Category string `json:"category"` // "business", "social" or "creative"
	Gender   string `json:"gender"`   // "woman" or "man"
	OrderID  string `json:"order_id"`
}

// TrainingCallback is the provider's "tune finished" notification.
type TrainingCallback struct {
	TuneID    string `json:"tune_id"`
	TrainedAt string `json:"trained_at"`
}

// GenerationCallback is the provider's "images ready" notification for a
// single prompt.
type GenerationCallback struct {
	PromptID string   `json:"prompt_id"`
	Output   []string `json:"output"`
	Status   string   `json:"status"`
	Prompts  []string `json:"prompts"`
}
