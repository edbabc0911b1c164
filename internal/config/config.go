package config

import "time"

type Config interface {
	EnvConfig
	ClientConfig
	TelemetryConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetAPIURL() string
	GetKeyringService() string
	GetKeyringAccount() string
}

type ClientConfig interface {
	GetHTTPTimeout() time.Duration
	GetAccessCookieName() string
	GetRefreshCookieName() string
	GetRefreshSkew() time.Duration
	GetProactiveRefresh() bool
}

type TelemetryConfig interface {
	GetOtelEndpoint() string
	GetOtelInsecure() bool
}

type mainConfig struct {
	EnvVars
	Client
	Telemetry
}

func New() Config {
	return mainConfig{}
}
