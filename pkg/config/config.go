package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string
	Port        string

	// ResQNet API
	APIBaseURL string
	APITimeout time.Duration

	// 会话存储配置
	SessionStore        string
	DataDir             string
	PostgresDSN         string
	RedisURL            string
	SessionCookieName   string
	SessionCookieSecure bool
	SessionTTL          time.Duration

	// 通知轮询
	NotificationPollInterval time.Duration

	// 登录/注册限流（每IP每分钟）
	LoginRatePerMinute int

	// CORS配置
	AllowedOrigins []string

	// 日志与调试
	LogLevel string
	Debug    bool
}

// LoadConfig 加载配置
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		Environment:              getEnvWithDefault("ENVIRONMENT", "development"),
		Port:                     getEnvWithDefault("PORT", "3000"),
		APIBaseURL:               strings.TrimRight(strings.TrimSpace(getEnvWithDefault("API_BASE_URL", "http://localhost:8080/api")), "/"),
		APITimeout:               getEnvDuration("API_TIMEOUT", 15*time.Second),
		SessionStore:             strings.ToLower(getEnvWithDefault("SESSION_STORE", StoreMemory)),
		DataDir:                  getEnvWithDefault("DATA_DIR", "./data"),
		SessionCookieName:        getEnvWithDefault("SESSION_COOKIE_NAME", "resqnet_session"),
		SessionCookieSecure:      getEnvBool("SESSION_COOKIE_SECURE", false),
		SessionTTL:               getEnvDuration("SESSION_TTL", 24*time.Hour),
		NotificationPollInterval: getEnvDuration("NOTIFICATION_POLL_INTERVAL", 60*time.Second),
		LoginRatePerMinute:       getEnvInt("LOGIN_RATE_PER_MINUTE", 10),
		LogLevel:                 getEnvWithDefault("LOG_LEVEL", "info"),
		Debug:                    getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		for _, o := range strings.Split(allowedOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, o)
			}
		}
	}

	if config.Environment == "production" {
		// 生产环境：会话 cookie 必须 Secure，关闭调试
		config.SessionCookieSecure = true
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per process)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	if c.NotificationPollInterval <= 0 {
		return fmt.Errorf("NOTIFICATION_POLL_INTERVAL must be positive")
	}
	if c.SessionCookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME is required")
	}

	switch c.SessionStore {
	case StoreMemory:
		if c.IsProduction() {
			fmt.Println("⚠️  WARNING: production is using the in-memory session store; sessions are lost on restart")
		}
	case StoreFile:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for the file session store")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("会话存储配置不完整：SESSION_STORE=postgres 需要 POSTGRES_DSN")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("会话存储配置不完整：SESSION_STORE=redis 需要 REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q (want memory, file, postgres or redis)", c.SessionStore)
	}

	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// CLIHome returns the directory the command-line client keeps its session in:
// $RESQNET_HOME, else ~/.resqnet.
func CLIHome() string {
	if home := strings.TrimSpace(os.Getenv("RESQNET_HOME")); home != "" {
		return home
	}
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".resqnet")
	}
	return ".resqnet"
}

// 辅助函数

// getEnvWithDefault 获取环境变量，如果不存在则使用默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型的环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt 获取整数类型的环境变量
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// loadEnvFile 加载 .env 文件到环境变量
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return // 文件不存在或无法打开，静默返回
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// 移除值两端的引号（如果有）
		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		// 只有当环境变量不存在时才设置
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
