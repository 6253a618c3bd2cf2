package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by GAPSIM_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("GAPSIM_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// APIKey returns the bearer token required on /v1 routes.
// Empty disables authentication (local development).
func APIKey() string {
	return os.Getenv("API_KEY")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// OracleProvider returns the default oracle provider for call sites without
// a site-specific override.
// Valid values: openai, anthropic, gemini, cerebras, mock
func OracleProvider() string {
	p := os.Getenv("ORACLE_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// Oracle call sites. Each can select its own provider and model via
// ORACLE_<SITE>_PROVIDER / ORACLE_<SITE>_MODEL.
const (
	SiteNarrative    = "NARRATIVE"
	SiteCommand      = "COMMAND"
	SiteGenerative   = "GENERATIVE"
	SiteClassifier   = "CLASSIFIER"
	SiteSelfEval     = "SELF_EVAL"
	SiteObserverEval = "OBSERVER_EVAL"
)

// OracleProviderFor returns the provider for one call site, falling back to
// the global default.
func OracleProviderFor(site string) string {
	p := os.Getenv("ORACLE_" + site + "_PROVIDER")
	if p == "" {
		return OracleProvider()
	}
	return p
}

// OracleModelFor returns the model override for one call site. Empty means
// the provider's default model.
func OracleModelFor(site string) string {
	return os.Getenv("ORACLE_" + site + "_MODEL")
}

// OracleAPIKeyFor returns the API key matching a provider name.
func OracleAPIKeyFor(provider string) string {
	switch provider {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingProvider returns the configured embedding provider.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingModel returns the embedding model override, or empty for the
// provider default.
func EmbeddingModel() string {
	return os.Getenv("EMBEDDING_MODEL")
}

// TickMinutes returns the simulated minutes per tick. Defaults to 15.
func TickMinutes() int {
	m, err := strconv.Atoi(os.Getenv("TICK_MINUTES"))
	if err != nil || m <= 0 {
		return 15
	}
	return m
}

// MemoryDecayPerTick returns the weight lost per elapsed tick.
// Defaults to 0.0125 (0.05 per hour at 15-minute ticks).
func MemoryDecayPerTick() float64 {
	d, err := strconv.ParseFloat(os.Getenv("MEMORY_DECAY_PER_TICK"), 64)
	if err != nil || d < 0 {
		return 0.0125
	}
	return d
}

// MemoryDecayFloor returns the minimum effective memory weight.
// Defaults to 0.2.
func MemoryDecayFloor() float64 {
	f, err := strconv.ParseFloat(os.Getenv("MEMORY_DECAY_FLOOR"), 64)
	if err != nil || f < 0 {
		return 0.2
	}
	return f
}

// MemoryRecallLimit returns how many memories recall exposes to generation.
// Zero or negative means all. Defaults to 10.
func MemoryRecallLimit() int {
	n, err := strconv.Atoi(os.Getenv("MEMORY_RECALL_LIMIT"))
	if err != nil {
		return 10
	}
	return n
}

// GapThreshold returns the self-minus-observer gap at or above which a
// record is classified as a big gap. Defaults to 2.
func GapThreshold() int {
	t, err := strconv.Atoi(os.Getenv("GAP_THRESHOLD"))
	if err != nil || t <= 0 {
		return 2
	}
	return t
}

// FeasibilityBlockKeywords returns the activity keywords that gate command
// issuance (sleep and similar states where speaking is infeasible).
func FeasibilityBlockKeywords() []string {
	raw := os.Getenv("FEASIBILITY_BLOCK_KEYWORDS")
	if raw == "" {
		return []string{"수면", "잠", "취침", "낮잠", "샤워", "목욕", "통화", "외출"}
	}
	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if kw := strings.TrimSpace(p); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// PersonConcurrency returns how many persons may simulate in parallel.
// Defaults to 2.
func PersonConcurrency() int {
	n, err := strconv.Atoi(os.Getenv("PERSON_CONCURRENCY"))
	if err != nil || n <= 0 {
		return 2
	}
	return n
}

// OracleMaxRetries returns the retry bound per oracle call. Defaults to 3.
func OracleMaxRetries() int {
	n, err := strconv.Atoi(os.Getenv("ORACLE_MAX_RETRIES"))
	if err != nil || n <= 0 {
		return 3
	}
	return n
}

// OracleRetryBackoff returns the base backoff between oracle retries.
// Defaults to 2s.
func OracleRetryBackoff() time.Duration {
	d, err := time.ParseDuration(os.Getenv("ORACLE_RETRY_BACKOFF"))
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// OracleRPS returns the shared request-per-second budget across all oracle
// calls. Defaults to 5.
func OracleRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("ORACLE_RPS"), 64)
	if err != nil || rps <= 0 {
		return 5
	}
	return rps
}

// OracleBurst returns the burst size for the oracle limiter. Defaults to 5.
func OracleBurst() int {
	b, err := strconv.Atoi(os.Getenv("ORACLE_BURST"))
	if err != nil || b <= 0 {
		return 5
	}
	return b
}

// CircuitBreakerThreshold returns how many consecutive cell failures abort a
// run. Defaults to 10.
func CircuitBreakerThreshold() int {
	n, err := strconv.Atoi(os.Getenv("CIRCUIT_BREAKER_THRESHOLD"))
	if err != nil || n <= 0 {
		return 10
	}
	return n
}

// TemplatesDir returns the directory holding household template files.
// Defaults to "templates".
func TemplatesDir() string {
	d := os.Getenv("TEMPLATES_DIR")
	if d == "" {
		return "templates"
	}
	return d
}

// RateLimitRPS returns requests per second limit for the HTTP API.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
