package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/xaenox/proposal-assistant/internal/models"
)

type Config struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai" validate:"required"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Ingestion IngestionConfig `mapstructure:"ingestion" validate:"required"`
	Output    OutputConfig    `mapstructure:"output"`
	Server    ServerConfig    `mapstructure:"server"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key" validate:"required"`
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	Organization    string        `mapstructure:"organization"`
	ClassifierModel string        `mapstructure:"classifier_model" validate:"required"`
	AnswerModel     string        `mapstructure:"answer_model" validate:"required"`
	MaxTokens       int           `mapstructure:"max_tokens" validate:"gte=0"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	MaxNumResults   int           `mapstructure:"max_num_results" validate:"gte=0,lte=50"`
}

// RetrievalConfig names the vector store answers are grounded in. An empty
// VectorStoreID disables retrieval.
type RetrievalConfig struct {
	VectorStoreID string `mapstructure:"vector_store_id"`
}

func (r RetrievalConfig) Enabled() bool {
	return r.VectorStoreID != ""
}

type IngestionConfig struct {
	MaxFileBytes      int64         `mapstructure:"max_file_bytes" validate:"gt=0"`
	AllowedTypes      []string      `mapstructure:"allowed_types" validate:"min=1,dive,required"`
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	PollMaxInterval   time.Duration `mapstructure:"poll_max_interval" validate:"gtefield=PollInterval"`
	PollTimeout       time.Duration `mapstructure:"poll_timeout" validate:"gt=0"`
	UploadConcurrency int           `mapstructure:"upload_concurrency" validate:"gte=1,lte=16"`
}

type OutputConfig struct {
	PlainText bool `mapstructure:"plain_text"`
}

type ServerConfig struct {
	Port         string   `mapstructure:"port" validate:"required,numeric"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	RateLimit    float64  `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst    int      `mapstructure:"rate_burst" validate:"gte=0"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes" validate:"gte=0"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.organization", "")
	v.SetDefault("openai.classifier_model", "gpt-4.1-mini")
	v.SetDefault("openai.answer_model", "gpt-4.1")
	v.SetDefault("openai.max_tokens", 0)
	v.SetDefault("openai.request_timeout", 60*time.Second)
	v.SetDefault("openai.max_num_results", 0)

	v.SetDefault("retrieval.vector_store_id", "")

	v.SetDefault("ingestion.max_file_bytes", int64(20<<20))
	v.SetDefault("ingestion.allowed_types", []string{"pdf", "docx", "txt"})
	v.SetDefault("ingestion.poll_interval", time.Second)
	v.SetDefault("ingestion.poll_max_interval", 5*time.Second)
	v.SetDefault("ingestion.poll_timeout", 2*time.Minute)
	v.SetDefault("ingestion.upload_concurrency", 4)

	v.SetDefault("output.plain_text", true)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.max_body_bytes", int64(100<<20))

	v.SetDefault("telegram.token", "")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "assistant")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.development", false)
}

// LoadConfig reads .env, the optional YAML file at path and the environment,
// in increasing order of precedence. The result is not validated; call
// Validate before handing it to components.
func LoadConfig(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Deployment variables win over the file and the nested env keys.
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if storeID := v.GetString("VECTOR_STORE_ID"); storeID != "" {
		config.Retrieval.VectorStoreID = storeID
	}

	if port := v.GetString("PORT"); port != "" {
		config.Server.Port = port
	}

	for i, t := range config.Ingestion.AllowedTypes {
		config.Ingestion.AllowedTypes[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
	}

	return &config, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the loaded values. The first failing field is reported as
// a *models.ConfigurationError keyed by its config path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &models.ConfigurationError{Key: "config", Detail: err.Error()}
	}

	fe := fieldErrs[0]
	key := configKey(fe.Namespace())
	if fe.Tag() == "required" {
		return &models.ConfigurationError{Key: key}
	}
	return &models.ConfigurationError{
		Key:    key,
		Detail: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
	}
}

// RequireTelegram reports the token needed by the bot command.
func (c *Config) RequireTelegram() error {
	if c.Telegram.Token == "" {
		return &models.ConfigurationError{Key: "telegram.token"}
	}
	return nil
}

// RequireVectorStore reports the vector store needed by ingestion.
func (c *Config) RequireVectorStore() error {
	if !c.Retrieval.Enabled() {
		return &models.ConfigurationError{Key: "retrieval.vector_store_id", Detail: "required for ingestion (set VECTOR_STORE_ID)"}
	}
	return nil
}

var fieldKeys = map[string]string{
	"OpenAI": "openai", "APIKey": "api_key", "BaseURL": "base_url",
	"ClassifierModel": "classifier_model", "AnswerModel": "answer_model",
	"MaxTokens": "max_tokens", "RequestTimeout": "request_timeout", "MaxNumResults": "max_num_results",
	"Ingestion": "ingestion", "MaxFileBytes": "max_file_bytes", "AllowedTypes": "allowed_types",
	"PollInterval": "poll_interval", "PollMaxInterval": "poll_max_interval",
	"PollTimeout": "poll_timeout", "UploadConcurrency": "upload_concurrency",
	"Server": "server", "Port": "port", "RateLimit": "rate_limit", "RateBurst": "rate_burst",
	"MaxBodyBytes": "max_body_bytes", "Logging": "logging", "Level": "level",
}

// configKey turns a validator namespace like Config.OpenAI.APIKey into the
// config path openai.api_key.
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		name, idx, _ := strings.Cut(p, "[")
		if k, ok := fieldKeys[name]; ok {
			name = k
		} else {
			name = strings.ToLower(name)
		}
		if idx != "" {
			name += "[" + idx
		}
		parts[i] = name
	}
	return strings.Join(parts, ".")
}
