package config

import (
	"strconv"
	"time"
)

type Client struct{}

var _ ClientConfig = Client{}

func (Client) GetHTTPTimeout() time.Duration {
	return getDuration("REVALYTIQ_HTTP_TIMEOUT", 15*time.Second)
}

// GetAccessCookieName matches the backend's JWT_ACCESS_COOKIE_NAME
func (Client) GetAccessCookieName() string {
	return GetEnv("REVALYTIQ_ACCESS_COOKIE", "revalyt_access")
}

// GetRefreshCookieName matches the backend's JWT_REFRESH_COOKIE_NAME
func (Client) GetRefreshCookieName() string {
	return GetEnv("REVALYTIQ_REFRESH_COOKIE", "revalyt_refresh")
}

// GetRefreshSkew is how early an access cookie counts as expired
func (Client) GetRefreshSkew() time.Duration {
	return getDuration("REVALYTIQ_REFRESH_SKEW", 10*time.Second)
}

func (Client) GetProactiveRefresh() bool {
	return getBool("REVALYTIQ_PROACTIVE_REFRESH", true)
}

type Telemetry struct{}

var _ TelemetryConfig = Telemetry{}

func (Telemetry) GetOtelEndpoint() string {
	return GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

func (Telemetry) GetOtelInsecure() bool {
	return getBool("OTEL_EXPORTER_OTLP_INSECURE", false)
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getBool(key string, fallback bool) bool {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
