package astria

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Fixed tune parameters for portrait orders.
const (
	PresetFluxLoraPortrait = "flux-lora-portrait"
	ModelTypeLora          = "lora"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// APIError is a non-2xx response from the Astria API. The upstream status
// and body are kept so handlers can echo them in error details.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("astria: status %d, body: %s", e.StatusCode, e.Body)
}

type CreateTuneRequest struct {
	Title       string
	Name        string // class token, e.g. "sks woman"
	CallbackURL string
	Images      [][]byte
}

type Tune struct {
	ID    string
	Title string
	Name  string
}

type PromptRequest struct {
	Text        string `json:"text"`
	NumImages   int    `json:"num_images"`
	CallbackURL string `json:"callback,omitempty"`
}

type PromptResponse struct {
	ID   json.Number `json:"id"`
	Text string      `json:"text"`
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			// Tune creation streams every source image upstream, so this
			// is the long pole of the whole pipeline.
			Timeout: 60 * time.Second,
		},
	}
}

// CreateTune starts a tuning job from the given source images. The provider
// invokes the callback URL once training finishes.
func (c *Client) CreateTune(tuneReq CreateTuneRequest) (*Tune, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"tune[title]":      tuneReq.Title,
		"tune[name]":       tuneReq.Name,
		"tune[preset]":     PresetFluxLoraPortrait,
		"tune[model_type]": ModelTypeLora,
		"tune[callback]":   tuneReq.CallbackURL,
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}

	for _, image := range tuneReq.Images {
		part, err := writer.CreateFormFile("tune[images][]", "image.jpg")
		if err != nil {
			return nil, fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(image); err != nil {
			return nil, fmt.Errorf("failed to write image part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/tunes"
	req, err := http.NewRequest("POST", url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// The tune id is numeric on the wire; keep it as a string everywhere.
	var result struct {
		ID    json.Number `json:"id"`
		Title string      `json:"title"`
		Name  string      `json:"name"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	if result.ID.String() == "" {
		return nil, fmt.Errorf("tune id is empty in response, body: %s", string(body))
	}

	return &Tune{
		ID:    result.ID.String(),
		Title: result.Title,
		Name:  result.Name,
	}, nil
}

// SubmitPrompt requests generated images from a trained tune.
func (c *Client) SubmitPrompt(tuneID string, promptReq PromptRequest) (*PromptResponse, error) {
	jsonData, err := json.Marshal(promptReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/tunes/" + tuneID + "/prompts"
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result PromptResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return &result, nil
}
