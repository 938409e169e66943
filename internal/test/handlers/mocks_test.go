package handlers_test

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ai-portraits-backend/internal/astria"
	"ai-portraits-backend/internal/models"
	"ai-portraits-backend/internal/resend"
	"ai-portraits-backend/internal/supabase"
)

// Testify mocks for failure injection.

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) CreateOrder(order *models.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

func (m *MockOrderStore) ActivateOrder(orderID, tuneID string) error {
	args := m.Called(orderID, tuneID)
	return args.Error(0)
}

func (m *MockOrderStore) GetOrder(orderID string) (*models.Order, error) {
	args := m.Called(orderID)
	if order := args.Get(0); order != nil {
		return order.(*models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) GetOrderByTuneID(tuneID string) (*models.Order, error) {
	args := m.Called(tuneID)
	if order := args.Get(0); order != nil {
		return order.(*models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) ClaimPrompts(orderID string, prompts []string) (bool, error) {
	args := m.Called(orderID, prompts)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderStore) AdvanceToPromptsSubmitted(orderID string) (bool, error) {
	args := m.Called(orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderStore) CompleteOrder(orderID string, resultURLs []string) (bool, error) {
	args := m.Called(orderID, resultURLs)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderStore) RecordOrderError(orderID, errorMsg string) error {
	args := m.Called(orderID, errorMsg)
	return args.Error(0)
}

func (m *MockOrderStore) CreateOrderPrompts(prompts []*models.OrderPrompt) error {
	args := m.Called(prompts)
	return args.Error(0)
}

func (m *MockOrderStore) GetOrderPrompts(orderID string) ([]models.OrderPrompt, error) {
	args := m.Called(orderID)
	if prompts := args.Get(0); prompts != nil {
		return prompts.([]models.OrderPrompt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) GetPromptByID(promptID uuid.UUID) (*models.OrderPrompt, error) {
	args := m.Called(promptID)
	if prompt := args.Get(0); prompt != nil {
		return prompt.(*models.OrderPrompt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderStore) MarkPromptSubmitted(promptID uuid.UUID, providerPromptID string) error {
	args := m.Called(promptID, providerPromptID)
	return args.Error(0)
}

type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) ListOrderImages(orderID string) ([]string, error) {
	args := m.Called(orderID)
	if paths := args.Get(0); paths != nil {
		return paths.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockImageStore) DownloadFile(storagePath string) ([]byte, error) {
	args := m.Called(storagePath)
	if data := args.Get(0); data != nil {
		return data.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockTuneClient struct {
	mock.Mock
}

func (m *MockTuneClient) CreateTune(req astria.CreateTuneRequest) (*astria.Tune, error) {
	args := m.Called(req)
	if tune := args.Get(0); tune != nil {
		return tune.(*astria.Tune), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTuneClient) SubmitPrompt(tuneID string, req astria.PromptRequest) (*astria.PromptResponse, error) {
	args := m.Called(tuneID, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*astria.PromptResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEmailClient struct {
	mock.Mock
}

func (m *MockEmailClient) SendEmail(email resend.Email) error {
	args := m.Called(email)
	return args.Error(0)
}

// stubEvents records published lifecycle events.
type stubEvents struct {
	mu     sync.Mutex
	events []string
}

func (s *stubEvents) PublishOrderEvent(orderID string, event string, payload map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// fakeOrderStore is an in-memory OrderStore with the same conditional
// transition semantics as the SQL store, for exercising the state machine
// end to end.
type fakeOrderStore struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	prompts map[uuid.UUID]*models.OrderPrompt
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:  make(map[string]*models.Order),
		prompts: make(map[uuid.UUID]*models.OrderPrompt),
	}
}

func copyOrder(order *models.Order) *models.Order {
	clone := *order
	clone.Prompts = append([]string(nil), order.Prompts...)
	clone.ResultURLs = append([]string(nil), order.ResultURLs...)
	return &clone
}

func (f *fakeOrderStore) CreateOrder(order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, exists := f.orders[order.ID]; exists {
		// Resubmission reuses a stale pending row; anything further along
		// is a genuine duplicate.
		if existing.Status != models.StatusPending {
			return fmt.Errorf("order %s already exists with status %s", order.ID, existing.Status)
		}
		order.Status = models.StatusPending
		return nil
	}
	order.Status = models.StatusPending
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	f.orders[order.ID] = copyOrder(order)
	return nil
}

func (f *fakeOrderStore) ActivateOrder(orderID, tuneID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || order.Status != models.StatusPending {
		return fmt.Errorf("order %s is not pending activation", orderID)
	}
	order.TuneID.String = tuneID
	order.TuneID.Valid = true
	order.Status = models.StatusTraining
	return nil
}

func (f *fakeOrderStore) GetOrder(orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, supabase.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (f *fakeOrderStore) GetOrderByTuneID(tuneID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.TuneID.Valid && order.TuneID.String == tuneID {
			return copyOrder(order), nil
		}
	}
	return nil, supabase.ErrOrderNotFound
}

func (f *fakeOrderStore) ClaimPrompts(orderID string, prompts []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return false, supabase.ErrOrderNotFound
	}
	if order.Status != models.StatusTraining || order.Prompts != nil {
		return false, nil
	}
	order.Prompts = append([]string(nil), prompts...)
	return true, nil
}

func (f *fakeOrderStore) AdvanceToPromptsSubmitted(orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || order.Status != models.StatusTraining {
		return false, nil
	}
	order.Status = models.StatusPromptsSubmitted
	return true, nil
}

func (f *fakeOrderStore) CompleteOrder(orderID string, resultURLs []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || order.Status != models.StatusPromptsSubmitted {
		return false, nil
	}
	order.ResultURLs = append([]string(nil), resultURLs...)
	order.Status = models.StatusCompleted
	return true, nil
}

func (f *fakeOrderStore) RecordOrderError(orderID, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order, ok := f.orders[orderID]; ok {
		order.ErrorMessage.String = errorMsg
		order.ErrorMessage.Valid = true
	}
	return nil
}

func (f *fakeOrderStore) CreateOrderPrompts(prompts []*models.OrderPrompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, prompt := range prompts {
		clone := *prompt
		f.prompts[prompt.ID] = &clone
	}
	return nil
}

func (f *fakeOrderStore) GetOrderPrompts(orderID string) ([]models.OrderPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var prompts []models.OrderPrompt
	for _, prompt := range f.prompts {
		if prompt.OrderID == orderID {
			prompts = append(prompts, *prompt)
		}
	}
	sort.Slice(prompts, func(i, j int) bool { return prompts[i].Position < prompts[j].Position })
	return prompts, nil
}

func (f *fakeOrderStore) GetPromptByID(promptID uuid.UUID) (*models.OrderPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prompt, ok := f.prompts[promptID]
	if !ok {
		return nil, supabase.ErrPromptNotFound
	}
	clone := *prompt
	return &clone, nil
}

func (f *fakeOrderStore) MarkPromptSubmitted(promptID uuid.UUID, providerPromptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prompt, ok := f.prompts[promptID]
	if !ok {
		return supabase.ErrPromptNotFound
	}
	if prompt.SubmittedAt.Valid {
		return nil
	}
	prompt.ProviderPromptID.String = providerPromptID
	prompt.ProviderPromptID.Valid = true
	prompt.SubmittedAt.Time = time.Now()
	prompt.SubmittedAt.Valid = true
	return nil
}
