package env

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrNoEnvFile = errors.New("no .env file found in any of the expected locations")

// Values holds variables read from a .env file. Lookups fall back to the
// process environment.
type Values map[string]string

func (v Values) GetEnv(key, def string) string {
	// First check our loaded .env values
	if val, ok := v[key]; ok && val != "" {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func (v Values) GetInt(key string, def int) int {
	n, err := strconv.Atoi(v.GetEnv(key, ""))
	if err != nil {
		return def
	}
	return n
}

func (v Values) GetFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(v.GetEnv(key, ""), 64)
	if err != nil {
		return def
	}
	return f
}

func (v Values) GetDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetEnv(key, ""))
	if err != nil {
		return def
	}
	return d
}

func (v Values) IsDev() bool {
	return v.GetEnv("APP_ENV", "prod") == "dev"
}

// Load reads the first .env file found. A missing file is reported as
// ErrNoEnvFile together with empty Values, so callers running under Docker can
// continue on the process environment alone.
func Load() (Values, error) {
	// Look for .env file in project root
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/entitlementd to project root
		"../../../.env", // Fallback for deeper nesting
	}

	for _, envFile := range envFiles {
		vals, err := godotenv.Read(envFile)
		if err == nil {
			return Values(vals), nil
		}
	}
	return Values{}, ErrNoEnvFile
}
