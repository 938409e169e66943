package supabase

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"ai-portraits-backend/internal/models"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrPromptNotFound = errors.New("prompt not found")
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

const orderColumns = `id, user_name, email, category, gender, tune_id, status, prompts, result_urls, error_message, created_at, updated_at`

func scanOrder(row *sql.Row) (*models.Order, error) {
	var order models.Order
	var prompts, resultURLs []byte
	err := row.Scan(
		&order.ID, &order.UserName, &order.Email, &order.Category, &order.Gender,
		&order.TuneID, &order.Status, &prompts, &resultURLs, &order.ErrorMessage,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	if len(prompts) > 0 {
		if err := json.Unmarshal(prompts, &order.Prompts); err != nil {
			return nil, fmt.Errorf("failed to decode prompts: %w", err)
		}
	}
	if len(resultURLs) > 0 {
		if err := json.Unmarshal(resultURLs, &order.ResultURLs); err != nil {
			return nil, fmt.Errorf("failed to decode result urls: %w", err)
		}
	}

	return &order, nil
}

// CreateOrder inserts the local record before any provider interaction, in
// status pending. A failed submission leaves the row in pending, and the
// caller resubmits the same order id after the provider recovers: that
// resubmission reuses the stale pending row instead of failing on the
// duplicate key. Anything past pending is a genuine duplicate.
func (d *DatabaseClient) CreateOrder(order *models.Order) error {
	result, err := d.db.Exec(`
		INSERT INTO orders (id, user_name, email, category, gender, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, order.ID, order.UserName, order.Email, order.Category, order.Gender, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 1 {
		order.Status = models.StatusPending
		return nil
	}

	existing, err := d.GetOrder(order.ID)
	if err != nil {
		return fmt.Errorf("failed to check existing order: %w", err)
	}
	if existing.Status != models.StatusPending {
		return fmt.Errorf("order %s already exists with status %s", order.ID, existing.Status)
	}
	order.Status = models.StatusPending
	return nil
}

// ActivateOrder records the provider-assigned tune id and advances the order
// from pending to training. The guard on the current status makes the
// transition single-shot.
func (d *DatabaseClient) ActivateOrder(orderID, tuneID string) error {
	result, err := d.db.Exec(`
		UPDATE orders
		SET tune_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, tuneID, models.StatusTraining, orderID, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to activate order: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("order %s is not pending activation", orderID)
	}
	return nil
}

func (d *DatabaseClient) GetOrder(orderID string) (*models.Order, error) {
	row := d.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

// GetOrderByTuneID resolves the order a training callback belongs to.
func (d *DatabaseClient) GetOrderByTuneID(tuneID string) (*models.Order, error) {
	row := d.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE tune_id = $1`, tuneID)
	return scanOrder(row)
}

// ClaimPrompts persists the prompt set exactly once. The conditional write
// only succeeds while the order is still in training with no prompts stored,
// so a replayed callback cannot overwrite an earlier claim. Returns whether
// this call won the claim.
func (d *DatabaseClient) ClaimPrompts(orderID string, prompts []string) (bool, error) {
	promptsJSON, err := json.Marshal(prompts)
	if err != nil {
		return false, fmt.Errorf("failed to encode prompts: %w", err)
	}

	result, err := d.db.Exec(`
		UPDATE orders
		SET prompts = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND prompts IS NULL
	`, promptsJSON, orderID, models.StatusTraining)
	if err != nil {
		return false, fmt.Errorf("failed to store prompts: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// AdvanceToPromptsSubmitted moves a training order forward once every prompt
// went out. Returns false if the order already advanced.
func (d *DatabaseClient) AdvanceToPromptsSubmitted(orderID string) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, models.StatusPromptsSubmitted, orderID, models.StatusTraining)
	if err != nil {
		return false, fmt.Errorf("failed to advance order: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// CompleteOrder persists the generated image URLs and moves the order to
// completed. The status guard makes duplicate generation callbacks a no-op;
// returns whether this call performed the transition.
func (d *DatabaseClient) CompleteOrder(orderID string, resultURLs []string) (bool, error) {
	urlsJSON, err := json.Marshal(resultURLs)
	if err != nil {
		return false, fmt.Errorf("failed to encode result urls: %w", err)
	}

	result, err := d.db.Exec(`
		UPDATE orders
		SET result_urls = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, urlsJSON, models.StatusCompleted, orderID, models.StatusPromptsSubmitted)
	if err != nil {
		return false, fmt.Errorf("failed to complete order: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// RecordOrderError keeps a diagnostic trail for manual reconciliation. It
// never touches the status: there is no failure state in the lifecycle.
func (d *DatabaseClient) RecordOrderError(orderID, errorMsg string) error {
	_, err := d.db.Exec(`
		UPDATE orders
		SET error_message = $1, updated_at = NOW()
		WHERE id = $2
	`, errorMsg, orderID)
	return err
}

func (d *DatabaseClient) CreateOrderPrompts(prompts []*models.OrderPrompt) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, prompt := range prompts {
		if _, err := tx.Exec(`
			INSERT INTO order_prompts (id, order_id, position, text)
			VALUES ($1, $2, $3, $4)
		`, prompt.ID, prompt.OrderID, prompt.Position, prompt.Text); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create prompt: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prompts: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetOrderPrompts(orderID string) ([]models.OrderPrompt, error) {
	rows, err := d.db.Query(`
		SELECT id, order_id, position, text, provider_prompt_id, submitted_at, created_at
		FROM order_prompts
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.OrderPrompt
	for rows.Next() {
		var prompt models.OrderPrompt
		err := rows.Scan(
			&prompt.ID, &prompt.OrderID, &prompt.Position, &prompt.Text,
			&prompt.ProviderPromptID, &prompt.SubmittedAt, &prompt.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, prompt)
	}

	return prompts, rows.Err()
}

// GetPromptByID resolves a generation callback's correlation token.
func (d *DatabaseClient) GetPromptByID(promptID uuid.UUID) (*models.OrderPrompt, error) {
	var prompt models.OrderPrompt
	err := d.db.QueryRow(`
		SELECT id, order_id, position, text, provider_prompt_id, submitted_at, created_at
		FROM order_prompts
		WHERE id = $1
	`, promptID).Scan(
		&prompt.ID, &prompt.OrderID, &prompt.Position, &prompt.Text,
		&prompt.ProviderPromptID, &prompt.SubmittedAt, &prompt.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPromptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}

	return &prompt, nil
}

// MarkPromptSubmitted records that one generation request went out, so a
// replayed training callback skips it.
func (d *DatabaseClient) MarkPromptSubmitted(promptID uuid.UUID, providerPromptID string) error {
	_, err := d.db.Exec(`
		UPDATE order_prompts
		SET provider_prompt_id = $1, submitted_at = NOW()
		WHERE id = $2 AND submitted_at IS NULL
	`, providerPromptID, promptID)
	return err
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
