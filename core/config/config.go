package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	OTel      OTelConfig
	Google    GoogleConfig
	Unipile   UnipileConfig
	LLM       LLMConfig
	Sheets    SheetsConfig
	Storage   StorageConfig
	Pipeline  PipelineConfig
	Directory DirectoryConfig
	Analysis  AnalysisConfig
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// GoogleConfig covers every Google client in the process: Firestore, Cloud
// Storage, and Sheets share one service account.
type GoogleConfig struct {
	ProjectID string
	// Credentials is either a path to a service-account JSON file or the JSON
	// itself (inline, starting with "{"). Empty falls back to application
	// default credentials.
	Credentials string
}

type UnipileConfig struct {
	DSN       string // API base URL
	APIKey    string
	AccountID string // optional account-scope filter for ingestion
}

type LLMConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

type SheetsConfig struct {
	SalesSheetID    string
	StrategySheetID string
	FinanceSheetID  string
}

type StorageConfig struct {
	Bucket string
}

type PipelineConfig struct {
	RedisURL      string
	RedisStream   string
	RedisGroup    string
	RedisDLQ      string
	RedisConsumer string
}

// DirectoryConfig holds the static role directories. Maps are parsed from
// "id:Name,id:Name" environment values; the ignored set from a comma list.
type DirectoryConfig struct {
	Admins    map[string]string
	Employees map[string]string
	Partners  map[string]string
	Ignored   []string
}

// AnalysisConfig names the conversations with dedicated report passes. These
// chat ids are excluded from the general sales pass.
type AnalysisConfig struct {
	OperatorChatID string
	FoundersChatID string
	FinanceGroupID string
	FoundersLabel  string
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
	ServiceTypeReport ServiceType = "report"
)

// Load loads configuration from environment variables. In development it
// loads a service-specific .env file first (.env.server, .env.worker,
// .env.report), falling back to .env.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("SECRETARY_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:  getEnv("SECRETARY_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "secretary"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Google: GoogleConfig{
			ProjectID:   getEnv("GOOGLE_PROJECT_ID", ""),
			Credentials: getEnv("GOOGLE_CREDENTIALS", ""),
		},
		Unipile: UnipileConfig{
			DSN:       getEnv("UNIPILE_DSN", ""),
			APIKey:    getEnv("UNIPILE_API_KEY", ""),
			AccountID: getEnv("UNIPILE_ACCOUNT_ID", ""),
		},
		LLM: LLMConfig{
			APIKey:    getEnv("LLM_API_KEY", ""),
			BaseURL:   getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:     getEnv("LLM_MODEL", "gemini-2.0-flash"),
			MaxTokens: getEnvInt("LLM_MAX_TOKENS", 2048),
		},
		Sheets: SheetsConfig{
			SalesSheetID:    getEnv("SHEET_ID_SALES", ""),
			StrategySheetID: getEnv("SHEET_ID_STRATEGY", ""),
			FinanceSheetID:  getEnv("SHEET_ID_FINANCE", ""),
		},
		Storage: StorageConfig{
			Bucket: getEnv("ATTACHMENT_GCS_BUCKET", ""),
		},
		Pipeline: PipelineConfig{
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			RedisStream:   getEnv("REDIS_STREAM", "secretary_events"),
			RedisGroup:    getEnv("REDIS_CONSUMER_GROUP", "secretary_group"),
			RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "secretary_events_dlq"),
			RedisConsumer: getEnv("REDIS_CONSUMER_NAME", "worker"),
		},
		Directory: DirectoryConfig{
			Admins:    parseDirectory(getEnv("DIRECTORY_ADMINS", "")),
			Employees: parseDirectory(getEnv("DIRECTORY_EMPLOYEES", "")),
			Partners:  parseDirectory(getEnv("DIRECTORY_PARTNERS", "")),
			Ignored:   parseList(getEnv("IGNORED_NUMBERS", "")),
		},
		Analysis: AnalysisConfig{
			OperatorChatID: getEnv("OPERATOR_CHAT_ID", ""),
			FoundersChatID: getEnv("FOUNDERS_CHAT_ID", ""),
			FinanceGroupID: getEnv("FINANCE_GROUP_ID", ""),
			FoundersLabel:  getEnv("FOUNDERS_LABEL", "Founders"),
		},
	}

	switch serviceType {
	case ServiceTypeReport:
		if cfg.LLM.APIKey == "" {
			return Config{}, fmt.Errorf("LLM_API_KEY is required for the report job")
		}
	case ServiceTypeWorker, ServiceTypeServer:
		if cfg.Pipeline.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL is required")
		}
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c GoogleConfig) Enabled() bool {
	return c.ProjectID != ""
}

func (c UnipileConfig) Enabled() bool {
	return c.DSN != "" && c.APIKey != ""
}

func (c StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

// parseDirectory parses "id:Name,id:Name" into a map. Entries without a name
// keep the id as the label.
func parseDirectory(value string) map[string]string {
	result := make(map[string]string)
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, name, found := strings.Cut(entry, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if !found || strings.TrimSpace(name) == "" {
			result[id] = id
			continue
		}
		result[id] = strings.TrimSpace(name)
	}
	return result
}

func parseList(value string) []string {
	var result []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			result = append(result, entry)
		}
	}
	return result
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
