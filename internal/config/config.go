package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
)

// Backend names accepted by assistant.backend.
const (
	BackendGemini = "gemini"
	BackendArk    = "ark"
)

// Config aggregates every section the service reads at startup.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Assistant AssistantConfig
	Gemini    GeminiConfig
	Ark       ArkConfig
	Speech    SpeechConfig
	Wallet    WalletConfig
	Cache     CacheConfig
}

// Load reads an optional config file from dir (config.yaml) and overlays environment
// variables, where a key such as gemini.api_key maps to GEMINI_API_KEY.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("server.port", "PORT", "SERVER_PORT")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	assistant, err := loadAssistantConfig(v)
	if err != nil {
		return nil, err
	}

	gemini, err := loadGeminiConfig(v)
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		Assistant: assistant,
		Gemini:    gemini,
		Ark:       loadArkConfig(v),
		Speech:    speech,
		Wallet: WalletConfig{
			RPCURL:  strings.TrimSpace(v.GetString("wallet.rpc_url")),
			Timeout: v.GetDuration("wallet.timeout"),
		},
		Cache: CacheConfig{
			RedisAddr:     strings.TrimSpace(v.GetString("cache.redis_addr")),
			RedisPassword: v.GetString("cache.redis_password"),
			RedisDB:       v.GetInt("cache.redis_db"),
			SummaryTTL:    v.GetDuration("cache.summary_ttl"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("assistant.backend", BackendGemini)
	v.SetDefault("assistant.profile", "educhain")
	v.SetDefault("assistant.seed_greeting", true)
	v.SetDefault("assistant.speech_enabled", true)
	v.SetDefault("assistant.frame_prompt", false)

	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-pro")
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.top_k", 40)
	v.SetDefault("gemini.top_p", 0.95)
	v.SetDefault("gemini.max_output_tokens", 1024)
	v.SetDefault("gemini.timeout", "0s")
	v.SetDefault("gemini.rate_limit", 0.0)

	v.SetDefault("ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ark.region", "cn-beijing")

	v.SetDefault("speech.region", "cn-beijing")
	v.SetDefault("speech.asr_language", "en-US")
	v.SetDefault("speech.tts_language", "en-US")
	v.SetDefault("speech.tts_speed", 0.9)
	v.SetDefault("speech.tts_volume", 0.8)
	v.SetDefault("speech.timeout", 30)

	v.SetDefault("wallet.timeout", "10s")

	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.summary_ttl", "1h")
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	origins := v.GetStringSlice("server.cors_origins")
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	port := strings.TrimSpace(v.GetString("server.port"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// ":8080" and "127.0.0.1:8080" are taken as-is.
		return ServerConfig{Addr: port, CORSOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, CORSOrigins: origins}, nil
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level  string
	Pretty bool
}

// AssistantConfig controls widget behaviour.
type AssistantConfig struct {
	Backend       string
	Profile       string
	SeedGreeting  bool
	SpeechEnabled bool
	FramePrompt   bool
}

func loadAssistantConfig(v *viper.Viper) (AssistantConfig, error) {
	backend := strings.ToLower(strings.TrimSpace(v.GetString("assistant.backend")))
	switch backend {
	case BackendGemini, BackendArk:
	default:
		return AssistantConfig{}, fmt.Errorf("invalid assistant.backend value %q", backend)
	}

	return AssistantConfig{
		Backend:       backend,
		Profile:       strings.TrimSpace(v.GetString("assistant.profile")),
		SeedGreeting:  v.GetBool("assistant.seed_greeting"),
		SpeechEnabled: v.GetBool("assistant.speech_enabled"),
		FramePrompt:   v.GetBool("assistant.frame_prompt"),
	}, nil
}

// GeminiConfig describes the generateContent endpoint.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
	Timeout         time.Duration
	RateLimit       float64
}

// Enabled reports whether a credential was supplied.
func (c GeminiConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

func loadGeminiConfig(v *viper.Viper) (GeminiConfig, error) {
	cfg := GeminiConfig{
		APIKey:          strings.TrimSpace(v.GetString("gemini.api_key")),
		BaseURL:         strings.TrimRight(strings.TrimSpace(v.GetString("gemini.base_url")), "/"),
		Model:           strings.TrimSpace(v.GetString("gemini.model")),
		Temperature:     v.GetFloat64("gemini.temperature"),
		TopK:            v.GetInt("gemini.top_k"),
		TopP:            v.GetFloat64("gemini.top_p"),
		MaxOutputTokens: v.GetInt("gemini.max_output_tokens"),
		Timeout:         v.GetDuration("gemini.timeout"),
		RateLimit:       v.GetFloat64("gemini.rate_limit"),
	}

	if cfg.MaxOutputTokens < 0 || cfg.TopK < 0 {
		return GeminiConfig{}, fmt.Errorf("gemini generation limits must not be negative")
	}
	if cfg.RateLimit < 0 {
		return GeminiConfig{}, fmt.Errorf("invalid gemini.rate_limit value %v", cfg.RateLimit)
	}
	return cfg, nil
}

// ArkConfig describes the Ark chat model used by the alternate backend.
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials were supplied.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates an Ark chat model from the configuration.
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY plus ARK_MODEL")
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

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}

func loadArkConfig(v *viper.Viper) ArkConfig {
	cfg := ArkConfig{
		APIKey:    strings.TrimSpace(v.GetString("ark.api_key")),
		AccessKey: strings.TrimSpace(v.GetString("ark.access_key")),
		SecretKey: strings.TrimSpace(v.GetString("ark.secret_key")),
		Model:     strings.TrimSpace(v.GetString("ark.model")),
		BaseURL:   v.GetString("ark.base_url"),
		Region:    v.GetString("ark.region"),
	}
	if v.IsSet("ark.temperature") {
		val := v.GetFloat64("ark.temperature")
		cfg.Temperature = &val
	}
	if v.IsSet("ark.top_p") {
		val := v.GetFloat64("ark.top_p")
		cfg.TopP = &val
	}
	if v.IsSet("ark.max_tokens") {
		val := v.GetInt("ark.max_tokens")
		cfg.MaxTokens = &val
	}
	return cfg
}

// SpeechConfig describes the Volcengine speech credentials and playback defaults.
type SpeechConfig struct {
	AppID          string
	AccessToken    string
	Region         string
	ConcurrentMode bool
	ASRLanguage    string
	TTSVoice       string
	TTSSpeed       float32
	TTSVolume      float32
	TTSLanguage    string
	Timeout        int
	Enabled        bool
}

func loadSpeechConfig(v *viper.Viper) (SpeechConfig, error) {
	speed := float32(v.GetFloat64("speech.tts_speed"))
	volume := float32(v.GetFloat64("speech.tts_volume"))
	if speed <= 0 || volume <= 0 {
		return SpeechConfig{}, fmt.Errorf("speech.tts_speed and speech.tts_volume must be positive")
	}

	appID := strings.TrimSpace(v.GetString("speech.app_id"))
	token := strings.TrimSpace(v.GetString("speech.access_token"))
	if token == "" {
		token = strings.TrimSpace(v.GetString("speech.api_key"))
	}

	return SpeechConfig{
		AppID:          appID,
		AccessToken:    token,
		Region:         v.GetString("speech.region"),
		ConcurrentMode: v.GetBool("speech.concurrent_mode"),
		ASRLanguage:    v.GetString("speech.asr_language"),
		TTSVoice:       strings.TrimSpace(v.GetString("speech.tts_voice")),
		TTSSpeed:       speed,
		TTSVolume:      volume,
		TTSLanguage:    v.GetString("speech.tts_language"),
		Timeout:        v.GetInt("speech.timeout"),
		Enabled:        appID != "" && token != "",
	}, nil
}

// WalletConfig points at the JSON-RPC node backing the wallet provider.
type WalletConfig struct {
	RPCURL  string
	Timeout time.Duration
}

// Enabled reports whether a node URL was configured.
func (c WalletConfig) Enabled() bool {
	return c.RPCURL != ""
}

// CacheConfig configures the optional Redis summary cache.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SummaryTTL    time.Duration
}

// Enabled reports whether a Redis address was configured.
func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}
