package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ai-portraits-backend/internal/astria"
	"ai-portraits-backend/internal/config"
	"ai-portraits-backend/internal/models"
	"ai-portraits-backend/internal/resend"
	"ai-portraits-backend/internal/supabase"
)

// ImagesPerPrompt is the fixed number of images requested per generation
// prompt.
const ImagesPerPrompt = 4

type CallbacksHandler struct {
	config      *config.Config
	orderStore  OrderStore
	tuneClient  TuneClient
	emailClient EmailClient
	events      EventPublisher
}

func NewCallbacksHandler(cfg *config.Config, orderStore OrderStore, tuneClient TuneClient, emailClient EmailClient, events EventPublisher) *CallbacksHandler {
	return &CallbacksHandler{
		config:      cfg,
		orderStore:  orderStore,
		tuneClient:  tuneClient,
		emailClient: emailClient,
		events:      events,
	}
}

// renderPrompts produces the fixed prompt set for an order. The set is
// deterministic for a given gender: the same callback always yields the same
// three prompts.
func renderPrompts(templates []string, gender string) []string {
	subject := "sks " + gender
	prompts := make([]string, len(templates))
	for i, tmpl := range templates {
		prompts[i] = strings.ReplaceAll(tmpl, "{subject}", subject)
	}
	return prompts
}

// TrainingCompleted godoc
// @Summary     Training-complete callback
// @Description Invoked by the provider when a tuning job finishes. Persists the fixed prompt set and fans out one generation request per prompt. Safe to re-deliver: prompts are claimed with a conditional write and already-submitted prompts are skipped.
// @Tags        callbacks
// @Accept      json
// @Produce     json
// @Param       request body models.TrainingCallback true "Training callback"
// @Success     200 {object} models.TrainingCallbackResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /callbacks/training [post]
func (h *CallbacksHandler) TrainingCompleted(c *gin.Context) {
	if h.orderStore == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	var callback models.TrainingCallback
	if err := c.ShouldBindJSON(&callback); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid callback payload",
			Details: err.Error(),
		})
		return
	}
	if callback.TuneID == "" || callback.TrainedAt == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid callback payload"})
		return
	}

	order, err := h.orderStore.GetOrderByTuneID(callback.TuneID)
	if err != nil {
		if errors.Is(err, supabase.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to look up order",
			Details: err.Error(),
		})
		return
	}

	// Re-delivery after the order already advanced is a no-op.
	if order.Status == models.StatusPromptsSubmitted || order.Status == models.StatusCompleted {
		c.JSON(http.StatusOK, models.TrainingCallbackResponse{
			Message:         "Prompts already submitted",
			PromptResponses: []interface{}{},
		})
		return
	}

	prompts := renderPrompts(h.config.PromptTemplates, order.Gender)

	claimed, err := h.orderStore.ClaimPrompts(order.ID, prompts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to store prompts",
			Details: err.Error(),
		})
		return
	}
	if !claimed {
		log.Printf("order %s tune %s: prompts already claimed, resuming submission", order.ID, callback.TuneID)
	}

	rows, err := h.orderStore.GetOrderPrompts(order.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load prompts",
			Details: err.Error(),
		})
		return
	}
	if len(rows) == 0 {
		created := make([]*models.OrderPrompt, len(prompts))
		for i, text := range prompts {
			created[i] = &models.OrderPrompt{
				ID:       uuid.New(),
				OrderID:  order.ID,
				Position: i,
				Text:     text,
			}
		}
		if err := h.orderStore.CreateOrderPrompts(created); err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "failed to store prompts",
				Details: err.Error(),
			})
			return
		}
		rows, err = h.orderStore.GetOrderPrompts(order.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "failed to load prompts",
				Details: err.Error(),
			})
			return
		}
	}

	// Fan out one generation request per prompt that never went out. All
	// submissions are attempted even if one fails; the aggregate failure is
	// what the provider sees, and its re-delivery only retries the
	// unsubmitted remainder.
	var (
		group     errgroup.Group
		mu        sync.Mutex
		responses []interface{}
	)
	for i := range rows {
		prompt := rows[i]
		if prompt.SubmittedAt.Valid {
			continue
		}
		group.Go(func() error {
			resp, err := h.tuneClient.SubmitPrompt(callback.TuneID, astria.PromptRequest{
				Text:        prompt.Text,
				NumImages:   ImagesPerPrompt,
				CallbackURL: h.config.GenerationCallbackURL(prompt.ID.String()),
			})
			if err != nil {
				return fmt.Errorf("prompt %d: %w", prompt.Position, err)
			}
			if err := h.orderStore.MarkPromptSubmitted(prompt.ID, resp.ID.String()); err != nil {
				return fmt.Errorf("prompt %d: %w", prompt.Position, err)
			}
			mu.Lock()
			responses = append(responses, resp)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		log.Printf("order %s tune %s: prompt submission failed: %v", order.ID, callback.TuneID, err)
		_ = h.orderStore.RecordOrderError(order.ID, err.Error())
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to submit prompts",
			Details: err.Error(),
		})
		return
	}

	if _, err := h.orderStore.AdvanceToPromptsSubmitted(order.ID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to advance order",
			Details: err.Error(),
		})
		return
	}

	log.Printf("order %s tune %s: %d prompts submitted", order.ID, callback.TuneID, len(rows))
	_ = h.events.PublishOrderEvent(order.ID, "prompts_submitted",
		supabase.PromptsSubmittedPayload(order.ID, len(rows)))

	c.JSON(http.StatusOK, models.TrainingCallbackResponse{
		Message:         "Prompts submitted successfully",
		PromptResponses: responses,
	})
}

// ImagesGenerated godoc
// @Summary     Generation-complete callback
// @Description Invoked by the provider when generated images for one prompt are ready. The prompt correlation token in the path resolves the order; the first callback for an order completes it and sends the notification email, later ones are no-ops.
// @Tags        callbacks
// @Accept      json
// @Produce     json
// @Param       prompt_token path string true "Prompt correlation token"
// @Param       request body models.GenerationCallback true "Generation callback"
// @Success     200 {object} map[string]string "message"
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /callbacks/generation/{prompt_token} [post]
func (h *CallbacksHandler) ImagesGenerated(c *gin.Context) {
	if h.orderStore == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	promptID, err := uuid.Parse(c.Param("prompt_token"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Prompt not found"})
		return
	}

	var callback models.GenerationCallback
	if err := c.ShouldBindJSON(&callback); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid callback payload",
			Details: err.Error(),
		})
		return
	}
	if callback.PromptID == "" || callback.Status != "completed" || len(callback.Output) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid callback payload"})
		return
	}

	prompt, err := h.orderStore.GetPromptByID(promptID)
	if err != nil {
		if errors.Is(err, supabase.ErrPromptNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Prompt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to look up prompt",
			Details: err.Error(),
		})
		return
	}

	order, err := h.orderStore.GetOrder(prompt.OrderID)
	if err != nil {
		if errors.Is(err, supabase.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to look up order",
			Details: err.Error(),
		})
		return
	}

	completed, err := h.orderStore.CompleteOrder(order.ID, callback.Output)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to complete order",
			Details: err.Error(),
		})
		return
	}
	if !completed {
		// Another prompt's callback, or a re-delivery, already completed
		// the order. One email per order, so nothing more to do.
		if current, err := h.orderStore.GetOrder(order.ID); err == nil {
			order = current
		}
		if order.Status == models.StatusCompleted {
			c.JSON(http.StatusOK, gin.H{"message": "Images already processed"})
			return
		}
		log.Printf("order %s: generation callback while status=%s", order.ID, order.Status)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "order is not awaiting generation results",
		})
		return
	}

	log.Printf("order %s: completed with %d images (prompt %d)", order.ID, len(callback.Output), prompt.Position)
	_ = h.events.PublishOrderEvent(order.ID, "completed",
		supabase.OrderCompletedPayload(order.ID, callback.Output))

	// Notification is best-effort: a failed send surfaces as an error but
	// the order stays completed.
	if err := h.emailClient.SendEmail(resend.Email{
		From:    h.config.NotifyFrom,
		To:      order.Email,
		Subject: "Your AI Images Are Ready!",
		HTML:    resultEmailHTML(callback.Output),
	}); err != nil {
		log.Printf("order %s: failed to send notification email: %v", order.ID, err)
		_ = h.orderStore.RecordOrderError(order.ID, err.Error())
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to send notification email",
			Details: err.Error(),
		})
		return
	}

	log.Printf("order %s: notification email sent to %s", order.ID, order.Email)
	c.JSON(http.StatusOK, gin.H{"message": "Images processed and email sent successfully"})
}

func resultEmailHTML(urls []string) string {
	var b strings.Builder
	b.WriteString("<h1>Your AI Images Are Ready!</h1>")
	b.WriteString("<p>Here are your generated images:</p>")
	b.WriteString("<ul>")
	for _, url := range urls {
		b.WriteString(fmt.Sprintf(`<li><a href="%s">%s</a></li>`, url, url))
	}
	b.WriteString("</ul>")
	return b.String()
}
