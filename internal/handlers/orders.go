package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-portraits-backend/internal/astria"
	"ai-portraits-backend/internal/models"
	"ai-portraits-backend/internal/supabase"
)

// MinTrainingImages is the smallest source set the tuning preset produces
// acceptable results from.
const MinTrainingImages = 5

type OrdersHandler struct {
	tuneClient          TuneClient
	orderStore          OrderStore
	imageStore          ImageStore
	events              EventPublisher
	trainingCallbackURL string
}

func NewOrdersHandler(tuneClient TuneClient, orderStore OrderStore, imageStore ImageStore, events EventPublisher, trainingCallbackURL string) *OrdersHandler {
	return &OrdersHandler{
		tuneClient:          tuneClient,
		orderStore:          orderStore,
		imageStore:          imageStore,
		events:              events,
		trainingCallbackURL: trainingCallbackURL,
	}
}

// CreateOrder godoc
// @Summary     Submit a new portrait order
// @Description Starts model training for an order whose source photos were already uploaded. Inserts the local order record before the provider call, then activates it with the provider-assigned tune id.
// @Tags        orders
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateOrderRequest true "Order details"
// @Success     200 {object} models.CreateOrderResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /orders [post]
func (h *OrdersHandler) CreateOrder(c *gin.Context) {
	if h.orderStore == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Details: err.Error(),
		})
		return
	}

	if req.UserName == "" || req.Email == "" || req.Category == "" || req.Gender == "" || req.OrderID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing required fields"})
		return
	}
	if !models.ValidCategory(req.Category) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid category"})
		return
	}
	if !models.ValidGender(req.Gender) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid gender"})
		return
	}

	paths, err := h.imageStore.ListOrderImages(req.OrderID)
	if err != nil {
		log.Printf("order %s: failed to list images: %v", req.OrderID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to fetch order images",
			Details: err.Error(),
		})
		return
	}
	if len(paths) == 0 {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "No images found for order"})
		return
	}
	if len(paths) < MinTrainingImages {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: fmt.Sprintf("at least %d source images are required, found %d", MinTrainingImages, len(paths)),
		})
		return
	}

	// Local record goes in first so an upstream tune without a matching
	// local order can never exist. It stays pending until the provider
	// confirms.
	order := &models.Order{
		ID:       req.OrderID,
		UserName: req.UserName,
		Email:    req.Email,
		Category: req.Category,
		Gender:   req.Gender,
	}
	if err := h.orderStore.CreateOrder(order); err != nil {
		log.Printf("order %s: failed to insert: %v", req.OrderID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create order",
			Details: err.Error(),
		})
		return
	}

	images := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := h.imageStore.DownloadFile(path)
		if err != nil {
			log.Printf("order %s: failed to download image %s: %v", req.OrderID, path, err)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "failed to fetch order images",
				Details: err.Error(),
			})
			return
		}
		images = append(images, data)
	}

	tune, err := h.tuneClient.CreateTune(astria.CreateTuneRequest{
		Title:       fmt.Sprintf("%s-%s", req.UserName, req.OrderID),
		Name:        "sks " + req.Gender,
		CallbackURL: h.trainingCallbackURL,
		Images:      images,
	})
	if err != nil {
		log.Printf("order %s: tune creation failed: %v", req.OrderID, err)
		_ = h.orderStore.RecordOrderError(order.ID, err.Error())
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to start training",
			Details: err.Error(),
		})
		return
	}

	if err := h.orderStore.ActivateOrder(order.ID, tune.ID); err != nil {
		// The tune exists upstream but the local order is stuck in
		// pending. The error trail is what reconciliation works from.
		log.Printf("order %s: failed to activate with tune %s: %v", req.OrderID, tune.ID, err)
		_ = h.orderStore.RecordOrderError(order.ID, err.Error())
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to record training job",
			Details: err.Error(),
		})
		return
	}

	log.Printf("order %s: training started, tune %s", order.ID, tune.ID)
	_ = h.events.PublishOrderEvent(order.ID, "training_started",
		supabase.TrainingStartedPayload(order.ID, tune.ID))

	c.JSON(http.StatusOK, models.CreateOrderResponse{
		Message: "Training started successfully",
		TuneID:  tune.ID,
	})
}

// GetOrder godoc
// @Summary     Get order state
// @Description Returns the order's lifecycle status, prompts and result URLs.
// @Tags        orders
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       order_id path string true "Order ID"
// @Success     200 {object} models.OrderResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders/{order_id} [get]
func (h *OrdersHandler) GetOrder(c *gin.Context) {
	if h.orderStore == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	order, err := h.orderStore.GetOrder(c.Param("order_id"))
	if err != nil {
		if errors.Is(err, supabase.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to get order",
			Details: err.Error(),
		})
		return
	}

	response := models.OrderResponse{
		ID:         order.ID,
		UserName:   order.UserName,
		Email:      order.Email,
		Category:   order.Category,
		Gender:     order.Gender,
		Status:     order.Status,
		Prompts:    order.Prompts,
		ResultURLs: order.ResultURLs,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
	if order.TuneID.Valid {
		response.TuneID = order.TuneID.String
	}

	c.JSON(http.StatusOK, response)
}
