package supabase

import (
	"github.com/supabase-community/supabase-go"
)

// RealtimeClient lets the payment page follow an order's lifecycle without
// polling. Status changes are written to the orders table, which Supabase
// Realtime broadcasts on the postgres_changes channel automatically; this
// client exists for explicit events beyond row changes.
type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishOrderEvent(orderID string, event string, payload map[string]interface{}) error {
	// Database updates already trigger Realtime row-change broadcasts for
	// subscribers of the order row; explicit channel publishing can be added
	// here if richer events are needed.
	return nil
}

// Event payloads

func TrainingStartedPayload(orderID, tuneID string) map[string]interface{} {
	return map[string]interface{}{
		"order_id": orderID,
		"status":   "training",
		"tune_id":  tuneID,
	}
}

func PromptsSubmittedPayload(orderID string, promptCount int) map[string]interface{} {
	return map[string]interface{}{
		"order_id":     orderID,
		"status":       "prompts_submitted",
		"prompt_count": promptCount,
	}
}

func OrderCompletedPayload(orderID string, resultURLs []string) map[string]interface{} {
	return map[string]interface{}{
		"order_id":    orderID,
		"status":      "completed",
		"result_urls": resultURLs,
	}
}
