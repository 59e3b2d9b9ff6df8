package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	Env               string
	DatabaseURL       string
	AnthropicAPIKey   string
	OpenAIAPIKey      string
	PineconeAPIKey    string
	PineconeIndexName string
	AgentModel        string
	ExaminerModel     string
}

// Load reads .env when present and falls back to process environment
// variables. Required values are validated by the caller.
func Load() *Config {
	godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       os.Getenv("DB_URL"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		PineconeAPIKey:    os.Getenv("PINECONE_API_KEY"),
		PineconeIndexName: getEnv("PINECONE_INDEX", "tutor-knowledge"),
		AgentModel:        getEnv("AGENT_MODEL", ""),
		ExaminerModel:     getEnv("EXAMINER_MODEL", "gpt-4o-mini"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
