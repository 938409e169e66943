package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Astria (training provider)
	AstriaAPIKey     string
	AstriaAPIBaseURL string

	// Resend (email delivery)
	ResendAPIKey     string
	ResendAPIBaseURL string
	NotifyFrom       string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Server
	Port           string
	Environment    string
	BaseURL        string
	AllowedOrigins []string

	// PromptTemplates are the fixed generation prompts. The {subject}
	// placeholder is replaced with the tuned model token ("sks woman" /
	// "sks man") when a training callback arrives.
	PromptTemplates []string
}

// defaultPromptTemplates is the fixed three-prompt set submitted for every
// order once training completes.
var defaultPromptTemplates = []string{
	"A professional headshot of a {subject} in a suit, standing in a modern office, sharp lighting, confident expression, {subject}",
	"A casual portrait of a {subject} in a park, wearing summer clothes, soft sunlight, smiling, {subject}",
	"A futuristic portrait of a {subject} in a cyberpunk city, neon lights, wearing a leather jacket, intense expression, {subject}",
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		AstriaAPIKey:     getEnv("ASTRIA_API_KEY", ""),
		AstriaAPIBaseURL: getEnv("ASTRIA_API_BASE_URL", "https://api.astria.ai"),

		ResendAPIKey:     getEnv("RESEND_API_KEY", ""),
		ResendAPIBaseURL: getEnv("RESEND_API_BASE_URL", "https://api.resend.com"),
		NotifyFrom:       getEnv("NOTIFY_FROM_ADDRESS", "noreply@yourdomain.com"),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "user-images"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		AllowedOrigins: splitEnv("ALLOWED_ORIGINS", "*"),

		PromptTemplates: defaultPromptTemplates,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.AstriaAPIKey == "" {
		return fmt.Errorf("ASTRIA_API_KEY is required")
	}
	if c.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	return nil
}

// TrainingCallbackURL is the URL the provider invokes when a tune finishes.
func (c *Config) TrainingCallbackURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/api/v1/callbacks/training"
}

// GenerationCallbackURL is the URL the provider invokes when images for one
// prompt are ready. The per-prompt correlation token is part of the path.
func (c *Config) GenerationCallbackURL(promptToken string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/api/v1/callbacks/generation/" + promptToken
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
