package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	DBPath      string
	Environment string
	// Remote libsql database, used instead of DBPath when set
	TursoDatabaseURL string
	TursoAuthToken   string
	// Writes
	LockRetryAttempts int
	// Telemetry (NATS); an empty URL logs events instead
	NATSURL          string
	TelemetrySubject string
	// Payload archive: Cloudflare R2 when configured, ArchiveDir otherwise
	ArchiveEnabled    bool
	ArchiveDir        string
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	// Jobs
	IntegritySweepSchedule string
	// Courts seeded on start-up
	DefaultCourts []CourtSeed
}

// CourtSeed is a court code and display name pair
type CourtSeed struct {
	Code string
	Name string
}

func Load() *Config {
	// Load .env file (ignore error if not present - use system env vars)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		ServerPort:             getEnv("SERVER_PORT", "8080"),
		DBPath:                 getEnv("DB_PATH", "db/court_case.db"),
		Environment:            getEnv("ENVIRONMENT", "development"),
		TursoDatabaseURL:       getEnv("TURSO_DATABASE_URL", ""),
		TursoAuthToken:         getEnv("TURSO_AUTH_TOKEN", ""),
		LockRetryAttempts:      getEnvInt("LOCK_RETRY_ATTEMPTS", 3),
		NATSURL:                getEnv("NATS_URL", ""),
		TelemetrySubject:       getEnv("TELEMETRY_SUBJECT", "court-case.telemetry"),
		ArchiveEnabled:         getEnvBool("ARCHIVE_ENABLED", true),
		ArchiveDir:             getEnv("ARCHIVE_DIR", "archive/payloads"),
		R2AccountID:            getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:          getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:      getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:           getEnv("R2_BUCKET_NAME", ""),
		IntegritySweepSchedule: getEnv("INTEGRITY_SWEEP_SCHEDULE", "0 2 * * *"),
		DefaultCourts:          ParseCourtSeeds(getEnv("DEFAULT_COURTS", "B10JQ:North Tyneside Magistrates' Court,B14LO:Sheffield Magistrates' Court")),
	}
}

// ParseCourtSeeds reads comma separated CODE:Name pairs. Entries without a name use the code.
func ParseCourtSeeds(value string) []CourtSeed {
	var seeds []CourtSeed
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		code, name, _ := strings.Cut(entry, ":")
		code = strings.ToUpper(strings.TrimSpace(code))
		name = strings.TrimSpace(name)
		if code == "" {
			continue
		}
		if name == "" {
			name = code
		}
		seeds = append(seeds, CourtSeed{Code: code, Name: name})
	}
	return seeds
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Printf("Using default value for %s: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept common boolean representations
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		log.Printf("[WARNING] Invalid value for %s: %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
