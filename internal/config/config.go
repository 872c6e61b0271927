package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config 聚合客户端核心的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Backend BackendConfig
	Sync    SyncConfig
	Log     LogConfig
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

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	syncCfg, err := loadSyncConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Backend: backend,
		Sync:    syncCfg,
		Log:     loadLogConfig(),
	}, nil
}

// ServerConfig 描述 devserver 的监听地址。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8090"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8090" 或 "127.0.0.1:8090"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	VisionModel    string
	Timeout        int
	StreamResponse bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.APIKey != "" && c.ChatModel != ""
}

func loadAIConfig() (AIConfig, error) {
	stream, err := parseBoolEnv("LLM_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	timeout := 60
	if override, err := parseOptionalIntEnv("LLM_TIMEOUT"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		timeout = *override
	}

	return AIConfig{
		APIKey:         strings.TrimSpace(os.Getenv("QWEN_API_KEY")),
		BaseURL:        getEnvOrDefault("LLM_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
		ChatModel:      getEnvOrDefault("LLM_MODEL", "qwen-plus"),
		VisionModel:    getEnvOrDefault("LLM_VISION_MODEL", "qwen-vl-max"),
		Timeout:        timeout,
		StreamResponse: stream,
	}, nil
}

// BackendConfig 描述消息后端相关配置。
type BackendConfig struct {
	BaseURL string
	Timeout int
	UserID  int64
}

func loadBackendConfig() (BackendConfig, error) {
	timeout := 30
	if override, err := parseOptionalIntEnv("BACKEND_TIMEOUT"); err != nil {
		return BackendConfig{}, err
	} else if override != nil && *override > 0 {
		timeout = *override
	}

	userID := int64(1)
	raw := strings.TrimSpace(os.Getenv("USER_ID"))
	if raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return BackendConfig{}, fmt.Errorf("invalid USER_ID value %q: %w", raw, err)
		}
		userID = parsed
	}

	return BackendConfig{
		BaseURL: getEnvOrDefault("BACKEND_BASE_URL", "http://localhost:8080"),
		Timeout: timeout,
		UserID:  userID,
	}, nil
}

// SyncConfig 描述后台同步队列相关配置。
type SyncConfig struct {
	QueueSize       int
	WritesPerSecond float64
}

func loadSyncConfig() (SyncConfig, error) {
	queueSize := 64
	if override, err := parseOptionalIntEnv("SYNC_QUEUE_SIZE"); err != nil {
		return SyncConfig{}, err
	} else if override != nil && *override > 0 {
		queueSize = *override
	}

	writes := 8.0
	if raw := strings.TrimSpace(os.Getenv("SYNC_WRITES_PER_SECOND")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return SyncConfig{}, fmt.Errorf("invalid SYNC_WRITES_PER_SECOND value %q: %w", raw, err)
		}
		if parsed > 0 {
			writes = parsed
		}
	}

	return SyncConfig{QueueSize: queueSize, WritesPerSecond: writes}, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "text"),
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
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
