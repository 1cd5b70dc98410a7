package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

const (
	ProviderPython = "python"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type AppConfig struct {
	Env                    Environment
	LogLevel               string
	ServerPort             string
	RawBodyLog             bool
	HttpTimeoutSeconds     int
	MaxBodyBytes           int64
	ShutdownTimeoutSeconds int
}

type PythonConfig struct {
	ConfigDir              string
	ProcessShutdownTimeout int
}

type OpenAIConfig struct {
	URL   string
	Token string
}

type GeminiConfig struct {
	APIKey   string
	TaskType string
}

type CacheConfig struct {
	Size       int
	TTLSeconds int
}

type SemanticConfig struct {
	Provider    string
	Model       string
	WorkerCount int
	Python      PythonConfig
	OpenAI      OpenAIConfig
	Gemini      GeminiConfig
	Cache       CacheConfig
}

type RankingConfig struct {
	DefaultTopK int
}

type Config struct {
	App      AppConfig
	Semantic SemanticConfig
	Ranking  RankingConfig
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	appEnv := getEnv("APP_ENV", "development")
	env := parseEnvironment(appEnv)

	logLevel := getLogLevel(env)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	defaultPythonDir := filepath.Join(homeDir, ".config", "affinity")

	defaultWorkerCount := calculateDefaultWorkerCount()
	provider := strings.ToLower(getEnv("SEMANTIC_PROVIDER", ProviderPython))

	return &Config{
		App: AppConfig{
			Env:                    env,
			LogLevel:               logLevel,
			ServerPort:             getEnv("APP_SERVER_PORT", "8085"),
			RawBodyLog:             getEnvBool("APP_RAW_BODY_LOG", false),
			HttpTimeoutSeconds:     getEnvInt("APP_HTTP_TIMEOUT_SECONDS", 30),
			MaxBodyBytes:           int64(getEnvInt("APP_MAX_BODY_BYTES", 10<<20)),
			ShutdownTimeoutSeconds: getEnvInt("APP_SHUTDOWN_TIMEOUT_SECONDS", 10),
		},
		Semantic: SemanticConfig{
			Provider:    provider,
			Model:       getEnv("SEMANTIC_MODEL_NAME", defaultModel(provider)),
			WorkerCount: getEnvInt("SEMANTIC_WORKER_COUNT", defaultWorkerCount),
			Python: PythonConfig{
				ConfigDir:              getEnv("SEMANTIC_PYTHON_CONFIG_DIR", defaultPythonDir),
				ProcessShutdownTimeout: getEnvInt("SEMANTIC_PYTHON_PROCESS_SHUTDOWN_TIMEOUT", 5),
			},
			OpenAI: OpenAIConfig{
				URL:   getEnv("SEMANTIC_OPENAI_URL", "https://api.openai.com/v1"),
				Token: getEnv("SEMANTIC_OPENAI_TOKEN", ""),
			},
			Gemini: GeminiConfig{
				APIKey:   getEnv("SEMANTIC_GEMINI_API_KEY", ""),
				TaskType: getEnv("SEMANTIC_GEMINI_TASK_TYPE", "SEMANTIC_SIMILARITY"),
			},
			Cache: CacheConfig{
				Size:       getEnvInt("SEMANTIC_CACHE_SIZE", 4096),
				TTLSeconds: getEnvInt("SEMANTIC_CACHE_TTL_SECONDS", 3600),
			},
		},
		Ranking: RankingConfig{
			DefaultTopK: getEnvInt("RANKING_DEFAULT_TOP_K", 20),
		},
	}, nil
}

func (c *Config) Validate() error {
	if c.App.ServerPort == "" {
		return fmt.Errorf("APP_SERVER_PORT is required")
	}
	if c.Ranking.DefaultTopK < 0 {
		return fmt.Errorf("RANKING_DEFAULT_TOP_K must not be negative")
	}

	switch c.Semantic.Provider {
	case ProviderPython:
		if c.Semantic.WorkerCount < 1 {
			return fmt.Errorf("SEMANTIC_WORKER_COUNT must be at least 1")
		}
	case ProviderOpenAI:
		if c.Semantic.OpenAI.URL == "" || c.Semantic.OpenAI.Token == "" {
			return fmt.Errorf("SEMANTIC_OPENAI_URL and SEMANTIC_OPENAI_TOKEN are required")
		}
	case ProviderGemini:
		if c.Semantic.Gemini.APIKey == "" {
			return fmt.Errorf("SEMANTIC_GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unsupported SEMANTIC_PROVIDER %q", c.Semantic.Provider)
	}

	if c.Semantic.Model == "" {
		return fmt.Errorf("SEMANTIC_MODEL_NAME is required")
	}
	return nil
}

func parseEnvironment(envStr string) Environment {
	env := Environment(strings.ToLower(envStr))

	switch env {
	case Development, Production:
		return env
	default:
		return Development
	}
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "text-embedding-3-small"
	case ProviderGemini:
		return "text-embedding-004"
	default:
		return "paraphrase-MiniLM-L6-v2"
	}
}

func calculateDefaultWorkerCount() int {
	cpuCores := runtime.NumCPU()

	// paraphrase-MiniLM-L6-v2 plus torch runtime sits around 300MB per process
	modelMemoryMB := 300

	var availableMemoryMB int64 = 4096

	if memInfo, err := os.ReadFile("/proc/meminfo"); err == nil {
		lines := strings.Split(string(memInfo), "\n")
		for _, line := range lines {
			if strings.HasPrefix(line, "MemTotal:") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					if kb, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
						availableMemoryMB = kb / 1024
						break
					}
				}
			}
		}
	}

	workersByCPU := min(cpuCores, 4)

	// leave 2GB for the system and the Go process
	systemReservedMB := 2048
	usableMemoryMB := int(availableMemoryMB) - systemReservedMB
	if usableMemoryMB < 0 {
		usableMemoryMB = modelMemoryMB
	}

	workersByMemory := max(min(usableMemoryMB/modelMemoryMB, 4), 1)

	return min(max(min(workersByMemory, workersByCPU), 1), 4)
}

func getLogLevel(env Environment) string {
	if env == Production {
		return getEnv("APP_LOG_LEVEL", "info")
	}

	return getEnv("APP_LOG_LEVEL", "debug")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
