package models

import "time"

type CreateOrderResponse struct {
	Message string `json:"message"`
	TuneID  string `json:"tune_id"`
}

type OrderResponse struct {
	ID         string    `json:"order_id"`
	UserName   string    `json:"user_name"`
	Email      string    `json:"email"`
	Category   string    `json:"category"`
	Gender     string    `json:"gender"`
	TuneID     string    `json:"tune_id,omitempty"`
	Status     string    `json:"status"`
	Prompts    []string  `json:"prompts,omitempty"`
	ResultURLs []string  `json:"result_urls,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type TrainingCallbackResponse struct {
	Message         string        `json:"message"`
	PromptResponses []interface{} `json:"promptResponses"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
