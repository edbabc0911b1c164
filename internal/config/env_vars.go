package config

import (
	"net/url"
	"os"
	"strings"
)

const (
	appNameVar        = "APP_NAME"
	envVar            = "ENV"
	logLevelVar       = "LOG_LEVEL"
	apiURLVar         = "REVALYTIQ_API_URL"
	keyringServiceVar = "REVALYTIQ_KEYRING_SERVICE"
	keyringAccountVar = "REVALYTIQ_KEYRING_ACCOUNT"

	// EnvDev selects the local-development defaults
	EnvDev = "DEV"

	devAPIURL   = "http://127.0.0.1:8000"
	proxyAPIURL = "https://revalytiq-backend.onrender.com"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "RevalytIQ")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv(envVar)
	if env == "" {
		return "PROD"
	}
	return strings.ToUpper(env)
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetAPIURL returns the backend origin. Endpoint paths already carry the /api prefix,
// so a configured value ending in /api is trimmed back to its origin.
// Unset, it falls back to the local Django server in DEV and to the proxy origin otherwise.
func (e EnvVars) GetAPIURL() string {
	return ResolveAPIURL(os.Getenv(apiURLVar), e.GetEnv())
}

func (EnvVars) GetKeyringService() string {
	return GetEnv(keyringServiceVar, "com.revalytiq.client")
}

func (EnvVars) GetKeyringAccount() string {
	return GetEnv(keyringAccountVar, "session_cookies")
}

// ResolveAPIURL applies the base endpoint rules to a raw value. A relative value such
// as "/api" names the serving origin, which for this client is the default one.
func ResolveAPIURL(raw, env string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	raw = strings.TrimSuffix(raw, "/api")
	if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
		return defaultAPIURL(env)
	}
	return raw
}

func defaultAPIURL(env string) string {
	if env == EnvDev {
		return devAPIURL
	}
	return proxyAPIURL
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
