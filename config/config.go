package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// LLM selects the completion provider and the models used by each workflow
// role. Role models default to Model when unset, so a single model can serve
// grading, rewriting, summarization, and generation.
type LLM struct {
	Provider        string
	Model           string
	GraderModel     string
	RewriterModel   string
	SummarizerModel string
}

type Embeddings struct {
	Provider  string
	Model     string
	Dimension int
}

type Crawl struct {
	BaseURL   string
	UserAgent string
	Snapshot  string
	Delay     time.Duration
	MaxPages  int
}

type Config struct {
	ListenAddr  string
	PostgresDSN string
	Neo4jURI    string
	Neo4jUser   string
	Neo4jPass   string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaHost    string

	LLM        LLM
	Embeddings Embeddings

	Namespace    string
	TopK         int
	MaxRewrites  int
	ChatMaxWords int

	Crawl           Crawl
	RefreshSchedule string
}

// Load reads configuration from the environment, after a best-effort load of
// a local .env file. Missing variables fall back to development defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/kavas?sslmode=disable"),
		Neo4jURI:    getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:   getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:   getEnv("NEO4J_PASSWORD", "password"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),

		LLM: LLM{
			Provider:        getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:           getEnv("LLM_MODEL", "gpt-4o-mini"),
			GraderModel:     getEnv("GRADER_MODEL", ""),
			RewriterModel:   getEnv("REWRITER_MODEL", ""),
			SummarizerModel: getEnv("SUMMARIZER_MODEL", ""),
		},
		Embeddings: Embeddings{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},

		Namespace:    getEnv("INDEX_NAMESPACE", "default"),
		TopK:         getEnvInt("RAG_TOP_K", 3),
		MaxRewrites:  getEnvInt("RAG_MAX_REWRITES", 2),
		ChatMaxWords: getEnvInt("CHAT_MAX_WORDS", 2000),

		Crawl: Crawl{
			BaseURL:   getEnv("CRAWL_BASE_URL", ""),
			UserAgent: getEnv("CRAWL_USER_AGENT", "kavas-crawler/1.0"),
			Snapshot:  getEnv("CRAWL_SNAPSHOT", "site_data.json"),
			Delay:     getEnvDuration("CRAWL_DELAY", time.Second),
			MaxPages:  getEnvInt("CRAWL_MAX_PAGES", 0),
		},
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 336h"),
	}
}

// GraderModelName returns the grading model, falling back to the main model.
func (l LLM) GraderModelName() string {
	if l.GraderModel != "" {
		return l.GraderModel
	}
	return l.Model
}

func (l LLM) RewriterModelName() string {
	if l.RewriterModel != "" {
		return l.RewriterModel
	}
	return l.Model
}

func (l LLM) SummarizerModelName() string {
	if l.SummarizerModel != "" {
		return l.SummarizerModel
	}
	return l.Model
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
