package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultAppPort        = "7860"
	defaultAppEnv         = "local"
	defaultAuthMode       = "session"
	defaultDriveDriver    = "memory"
	defaultCacheDriver    = "memory"
	defaultRedisAddr      = "localhost:6379"
	defaultUploadMaxBytes = 100 << 20
)

var (
	loadOnce sync.Once
	loadErr  error

	mu     sync.RWMutex
	values = defaultValues()
)

// Load reads config/app.json and .env once. Process environment variables
// always win over both files.
func Load() error {
	loadOnce.Do(func() {
		loadErr = loadFromFiles("config/app.json", ".env")
	})
	return loadErr
}

func defaultValues() map[string]string {
	return map[string]string{
		"PORT":                   defaultAppPort,
		"APP_ENV":                defaultAppEnv,
		"AUTH_MODE":              defaultAuthMode,
		"CREDENTIAL_HEADER":      "X-Drive-Credential",
		"SESSION_HEADER":         "X-Session-ID",
		"SESSION_POLICY":         "manual",
		"SESSION_IDLE_TIMEOUT":   "30m",
		"SESSION_SWEEP_INTERVAL": "1m",
		"SESSION_MAX":            "0",
		"SESSION_TOKEN_TTL":      "0",
		"JWT_SECRET":             "",
		"DRIVE_DRIVER":           defaultDriveDriver,
		"DRIVE_LOCAL_ROOT":       "storage/accounts",
		"LOCAL_QUOTA_BYTES":      "0",
		"MEMORY_CREDENTIALS":     "",
		"MEMORY_SEED":            "true",
		"LOGIN_TIMEOUT":          "30s",
		"PUBLIC_URL":             "",
		"LINK_TTL":               "5m",
		"S3_BUCKET":              "",
		"S3_REGION":              "us-east-1",
		"S3_ENDPOINT":            "",
		"S3_QUOTA_BYTES":         "0",
		"UPLOAD_MAX_BYTES":       strconv.Itoa(defaultUploadMaxBytes),
		"TEMP_DIR":               "",
		"TRANSFER_WORKERS":       "8",
		"REQUEST_TIMEOUT":        "10m",
		"RATE_LIMIT_RPS":         "20",
		"RATE_LIMIT_BURST":       "40",
		"CACHE_DRIVER":           defaultCacheDriver,
		"REDIS_ADDR":             defaultRedisAddr,
		"REDIS_PASSWORD":         "",
		"QUOTA_CACHE_TTL":        "0",
		"CORS_ORIGINS":           "",
		"TRUSTED_PROXIES":        "",
		"JSON_MAX_BYTES":         "65536",
	}
}

// ── Server ───────────────────────────────────────────────────────────────────

func Port() string {
	_ = Load()
	return get("PORT", defaultAppPort)
}

func AppEnv() string {
	_ = Load()
	return get("APP_ENV", defaultAppEnv)
}

// UploadMaxBytes is the request body cap applied to every route.
func UploadMaxBytes() int64 {
	return Int64("UPLOAD_MAX_BYTES", defaultUploadMaxBytes)
}

// ── Auth / sessions ──────────────────────────────────────────────────────────

// AuthMode is either "session" (two-step /login flow) or "header" (raw
// credential on every request).
func AuthMode() string {
	_ = Load()
	switch mode := strings.ToLower(get("AUTH_MODE", defaultAuthMode)); mode {
	case "session", "header":
		return mode
	default:
		return defaultAuthMode
	}
}

func CredentialHeader() string { _ = Load(); return get("CREDENTIAL_HEADER", "X-Drive-Credential") }
func SessionHeader() string    { _ = Load(); return get("SESSION_HEADER", "X-Session-ID") }
func JWTSecret() string        { _ = Load(); return get("JWT_SECRET", "") }

// ── Drive ────────────────────────────────────────────────────────────────────

func DriveDriver() string {
	_ = Load()
	return strings.ToLower(get("DRIVE_DRIVER", defaultDriveDriver))
}

func CacheDriver() string {
	_ = Load()
	return strings.ToLower(get("CACHE_DRIVER", defaultCacheDriver))
}

func RedisAddr() string     { _ = Load(); return get("REDIS_ADDR", defaultRedisAddr) }
func RedisPassword() string { _ = Load(); return get("REDIS_PASSWORD", "") }

// PublicURL is the externally reachable base URL of this process, used to
// build signed download links. Defaults to http://localhost:<PORT>.
func PublicURL() string {
	_ = Load()
	if u := get("PUBLIC_URL", ""); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "http://localhost:" + Port()
}

// ── Typed helpers ────────────────────────────────────────────────────────────

// Duration parses key as a time.Duration ("30s", "5m"). A bare integer is
// read as seconds.
func Duration(key string, fallback time.Duration) time.Duration {
	_ = Load()
	raw := get(key, "")
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func Int(key string, fallback int) int {
	_ = Load()
	n, err := strconv.Atoi(get(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func Int64(key string, fallback int64) int64 {
	_ = Load()
	n, err := strconv.ParseInt(get(key, ""), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// Bool reads key as a boolean ("1", "true", "yes" are true).
func Bool(key string, fallback bool) bool {
	_ = Load()
	switch strings.ToLower(get(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// List reads key as a comma-separated list, dropping empty items.
func List(key string) []string {
	_ = Load()
	var out []string
	for _, item := range strings.Split(get(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Float(key string, fallback float64) float64 {
	_ = Load()
	f, err := strconv.ParseFloat(get(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

// ── Loading ──────────────────────────────────────────────────────────────────

func loadFromFiles(configPath, envPath string) error {
	loaded := defaultValues()

	if err := mergeJSONConfig(configPath, loaded); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	if err := mergeDotEnv(envPath, loaded); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	mergeEnviron(loaded)

	mu.Lock()
	values = loaded
	mu.Unlock()

	return nil
}

func mergeJSONConfig(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var raw map[string]interface{}
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	for key, val := range raw {
		k := strings.ToUpper(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		switch v := val.(type) {
		case string:
			out[k] = strings.TrimSpace(v)
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(v)
		}
	}

	return nil
}

func mergeDotEnv(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		key := strings.ToUpper(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		out[key] = value
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	return nil
}

// mergeEnviron overlays process environment variables for every known key.
func mergeEnviron(out map[string]string) {
	for key := range out {
		if v, ok := os.LookupEnv(key); ok {
			out[key] = strings.TrimSpace(v)
		}
	}
}

func get(key, fallback string) string {
	mu.RLock()
	defer mu.RUnlock()

	if value := strings.TrimSpace(values[key]); value != "" {
		return value
	}

	return fallback
}

// Get reads any config key by name with an optional fallback.
// Unknown keys are also looked up in the process environment.
func Get(key, fallback string) string {
	_ = Load()
	if v := get(key, ""); v != "" {
		return v
	}
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
