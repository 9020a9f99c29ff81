package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Arxiv     ArxivConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
	TTS       TTSConfig
	Redis     RedisConfig
	Recommend RecommendConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type ArxivConfig struct {
	BaseURL    string
	Query      string // optional extra search term ANDed with the date window
	MaxResults int
	PageSize   int
	Retries    int
	RetryDelay time.Duration
	Proxy      string
	// Fallback scan bounds for days where the date-window query is empty.
	FallbackMaxOffset   int
	FallbackEmptyStreak int
}

type EmbeddingConfig struct {
	Model        string
	Dimension    int
	MaxBatchSize int
}

// Credential is one LLM API credential; BaseURL is empty for the default
// OpenAI endpoint.
type Credential struct {
	APIKey  string
	BaseURL string
}

type LLMConfig struct {
	Credentials []Credential
	ChatModel   string
}

type TTSConfig struct {
	Dir         string
	Voice       string
	Concurrency int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type RecommendConfig struct {
	MaxWorkers  int
	Conferences []string
	ConfDataDir string
	CloudMode   bool
}

func Load() *Config {
	// Best effort; absence of a .env file is the normal production case.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "dev-secret-change-me"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getSliceEnv("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Arxiv: ArxivConfig{
			BaseURL:             getEnv("ARXIV_BASE_URL", "http://export.arxiv.org/api/query"),
			Query:               getEnv("ARXIV_QUERY", ""),
			MaxResults:          getIntEnv("ARXIV_MAX_RESULTS", 30000),
			PageSize:            getIntEnv("ARXIV_PAGE_SIZE", 2000),
			Retries:             getIntEnv("ARXIV_RETRIES", 3),
			RetryDelay:          getDurationEnv("ARXIV_RETRY_DELAY", 3*time.Second),
			Proxy:               getEnv("HTTP_PROXY", ""),
			FallbackMaxOffset:   getIntEnv("ARXIV_FALLBACK_MAX_OFFSET", 10000),
			FallbackEmptyStreak: getIntEnv("ARXIV_FALLBACK_EMPTY_STREAK", 3),
		},
		Embedding: EmbeddingConfig{
			Model:        getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension:    getIntEnv("EMBEDDING_DIMENSION", 1536),
			MaxBatchSize: getIntEnv("EMBEDDING_MAX_BATCH_SIZE", 64),
		},
		LLM: LLMConfig{
			Credentials: parseCredentials(getEnv("LLM_CREDENTIALS", "")),
			ChatModel:   getEnv("LLM_CHAT_MODEL", "gpt-4o-mini"),
		},
		TTS: TTSConfig{
			Dir:         getEnv("TTS_DIR", "./data/tts"),
			Voice:       getEnv("TTS_VOICE", "zh-CN-XiaoxiaoNeural"),
			Concurrency: getIntEnv("TTS_CONCURRENCY", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			TTL:      getDurationEnv("CACHE_TTL", time.Hour),
		},
		Recommend: RecommendConfig{
			MaxWorkers:  getIntEnv("RECOMMEND_MAX_WORKERS", 10),
			Conferences: getSliceEnv("CONFERENCES", nil),
			ConfDataDir: getEnv("CONF_DATA_DIR", "./data/conferences"),
			CloudMode:   getBoolEnv("CLOUD_MODE", false),
		},
	}
}

// parseCredentials splits "key1@https://host1,key2" into credentials; the
// part after '@' is an optional OpenAI-compatible base URL.
func parseCredentials(raw string) []Credential {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	creds := make([]Credential, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cred := Credential{APIKey: part}
		if at := strings.Index(part, "@"); at > 0 {
			cred.APIKey = part[:at]
			cred.BaseURL = part[at+1:]
		}
		creds = append(creds, cred)
	}
	return creds
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
