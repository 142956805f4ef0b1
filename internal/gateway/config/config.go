package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"structai/internal/llm"
)

type Config struct {
	Port    string
	Env     string
	LLM     llm.Options
	History HistoryConfig
	Audio   AudioConfig
	Chat    ChatConfig
}

type HistoryConfig struct {
	Backend     string
	Path        string
	SQLitePath  string
	PostgresDSN string
	CacheSize   int
}

type AudioConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c AudioConfig) CanUseS3() bool {
	return c.Enabled && c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

type ChatConfig struct {
	ErrorMessage string
	Narrate      bool
	MaxSessions  int
	SessionIdle  time.Duration
}

// Load reads .env (if present), then the environment, then flags in args.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	port := fs.String("port", ":8080", "server port")
	provider := fs.String("llm", "", "llm provider: gemini, openrouter or fake")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	llmOpts := LoadLLM()
	if p := strings.TrimSpace(*provider); p != "" {
		llmOpts.Provider = p
	}

	return &Config{
		Port:    *port,
		Env:     env,
		LLM:     llmOpts,
		History: loadHistoryConfig(),
		Audio:   loadAudioConfig(env),
		Chat: ChatConfig{
			ErrorMessage: strings.TrimSpace(os.Getenv("CHAT_ERROR_MESSAGE")),
			Narrate:      envBool("CHAT_NARRATE", false),
			MaxSessions:  envInt("CHAT_MAX_SESSIONS", 1024),
			SessionIdle:  envDuration("CHAT_SESSION_IDLE", 2*time.Hour),
		},
	}, nil
}

// LoadLLM reads the model provider settings. A Gemini key selects Gemini,
// an OpenRouter key selects OpenRouter, and no key at all selects the fake
// client unless LLM_PROVIDER says otherwise.
func LoadLLM() llm.Options {
	geminiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	openKey := firstNonEmpty(strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")), strings.TrimSpace(os.Getenv("OPENAI_API_KEY")))

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if provider == "" {
		switch {
		case geminiKey != "":
			provider = llm.ProviderGemini
		case openKey != "":
			provider = llm.ProviderOpenRouter
		default:
			provider = llm.ProviderFake
		}
	}

	return llm.Options{
		Provider: provider,
		Gemini: llm.GeminiConfig{
			APIKey:   geminiKey,
			Model:    strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
			TTSModel: strings.TrimSpace(os.Getenv("GEMINI_TTS_MODEL")),
			Voice:    strings.TrimSpace(os.Getenv("GEMINI_TTS_VOICE")),
		},
		OpenAI: llm.OpenAIConfig{
			APIKey:    openKey,
			BaseURL:   strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL")),
			Model:     strings.TrimSpace(os.Getenv("OPENROUTER_MODEL")),
			ChatModel: strings.TrimSpace(os.Getenv("OPENROUTER_CHAT_MODEL")),
		},
		RPS:         envFloat("LLM_RPS", 0),
		Burst:       envInt("LLM_BURST", 0),
		MaxAttempts: envInt("LLM_MAX_ATTEMPTS", 1),
		RetryDelay:  envDuration("LLM_RETRY_DELAY", 500*time.Millisecond),
		PromptDir:   strings.TrimSpace(os.Getenv("LLM_PROMPT_DIR")),
	}
}

func loadHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Backend:     firstNonEmpty(strings.ToLower(strings.TrimSpace(os.Getenv("HISTORY_BACKEND"))), "file"),
		Path:        firstNonEmpty(strings.TrimSpace(os.Getenv("HISTORY_PATH")), "tmp/history"),
		SQLitePath:  firstNonEmpty(strings.TrimSpace(os.Getenv("HISTORY_SQLITE_PATH")), "tmp/history.db"),
		PostgresDSN: strings.TrimSpace(os.Getenv("HISTORY_PG_DSN")),
		CacheSize:   envInt("HISTORY_CACHE_SIZE", 128),
	}
}

func loadAudioConfig(env string) AudioConfig {
	endpoint := resolveAudioEndpoint(env)
	return AudioConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "structai-speech"),
		UseSSL:    resolveAudioUseSSL(env),
	}
}

func resolveAudioEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveAudioUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	return envBool("ARTIFACT_S3_USE_SSL", true)
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
