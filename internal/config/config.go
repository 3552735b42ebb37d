package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/zhouzirui/moodchat/backend/internal/conversation"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Trend  TrendConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	trend, err := loadTrendConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: server,
		AI:     ai,
		Trend:  trend,
		Log:    loadLogConfig(),
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string `validate:"required"`
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, oops.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	Temperature    *float64 `validate:"omitempty,gte=0,lte=2"`
	TopP           *float64 `validate:"omitempty,gte=0,lte=1"`
	MaxTokens      *int     `validate:"omitempty,gt=0"`
	StreamResponse bool

	// EmotionLLMEnabled routes sentiment classification through the chat model.
	EmotionLLMEnabled bool
	// EmotionFallback substitutes keyword heuristics when the model classifier fails.
	EmotionFallback bool
	// ContextLimit is how many prior messages are sent along with each reply request.
	ContextLimit int `validate:"gte=1"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("model credentials missing: provide MODEL plus ARK_API_KEY or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	emotionEnabled, err := parseBoolEnv("AI_EMOTION_LLM_ENABLED", true)
	if err != nil {
		return AIConfig{}, err
	}

	emotionFallback, err := parseBoolEnv("AI_EMOTION_FALLBACK", true)
	if err != nil {
		return AIConfig{}, err
	}

	contextLimit := 5
	if override, err := parseOptionalIntEnv("AI_CONTEXT_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		contextLimit = *override
	}

	modelName := strings.TrimSpace(os.Getenv("MODEL"))
	if modelName == "" {
		modelName = strings.TrimSpace(os.Getenv("Model"))
	}

	return AIConfig{
		APIKey:            strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:         strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:         strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:             modelName,
		BaseURL:           getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:            getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:       temperature,
		TopP:              topP,
		MaxTokens:         maxTokens,
		StreamResponse:    stream,
		EmotionLLMEnabled: emotionEnabled,
		EmotionFallback:   emotionFallback,
		ContextLimit:      contextLimit,
	}, nil
}

// TrendConfig 控制情绪趋势的滑动窗口。
type TrendConfig struct {
	Window    int     `validate:"gte=2"`
	Split     int     `validate:"gte=1,ltefield=Window"`
	Threshold float64 `validate:"gte=0"`
}

// Options converts the configuration into store trend options.
func (c TrendConfig) Options() conversation.TrendOptions {
	return conversation.TrendOptions{Window: c.Window, Split: c.Split, Threshold: c.Threshold}
}

func loadTrendConfig() (TrendConfig, error) {
	cfg := TrendConfig{Window: 5, Split: 3, Threshold: 0.3}

	window, err := parseOptionalIntEnv("TREND_WINDOW")
	if err != nil {
		return TrendConfig{}, err
	}
	if window != nil {
		cfg.Window = *window
	}

	split, err := parseOptionalIntEnv("TREND_SPLIT")
	if err != nil {
		return TrendConfig{}, err
	}
	if split != nil {
		cfg.Split = *split
	}

	threshold, err := parseOptionalFloatEnv("TREND_THRESHOLD")
	if err != nil {
		return TrendConfig{}, err
	}
	if threshold != nil {
		cfg.Threshold = *threshold
	}

	return cfg, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level string `validate:"omitempty,oneof=debug info warn error"`
	File  string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level: strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		File:  strings.TrimSpace(os.Getenv("LOG_FILE")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, oops.With("key", key).Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, oops.With("key", key).Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, oops.With("key", key).Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
