package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	StorageDir   string // when set, files are kept on local disk instead of S3
	AIAPIKey     string
	EmbedModel   string
	EmbedDim     int
	OCRModel     string

	// Extraction and embedding thresholds.
	MinEmbeddedTextLen int     // document-level born-digital decision
	MinEmbedLen        int     // pages shorter than this are not embedded
	MaxEmbedChars      int     // input truncation before embedding
	LexicalWeight      float64 // default hybrid weights
	SemanticWeight     float64

	Port string
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		AwsAccessKey:       getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:       getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:          getEnv("AWS_REGION", "us-east-2"),
		BucketName:         getEnv("BUCKET_NAME", "verdicta-docs"),
		StorageDir:         getEnv("STORAGE_DIR", ""),
		AIAPIKey:           getEnv("GEMINI_API_KEY", ""),
		EmbedModel:         getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:           getEnvInt("EMBED_DIM", 768),
		OCRModel:           getEnv("OCR_MODEL", "gemini-1.5-flash"),
		MinEmbeddedTextLen: getEnvInt("MIN_EMBEDDED_TEXT_LEN", 300),
		MinEmbedLen:        getEnvInt("MIN_EMBED_LEN", 50),
		MaxEmbedChars:      getEnvInt("MAX_EMBED_CHARS", 2000),
		LexicalWeight:      getEnvFloat("LEXICAL_WEIGHT", 0.5),
		SemanticWeight:     getEnvFloat("SEMANTIC_WEIGHT", 0.5),
		Port:               getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a float, using default %g", key, v, def)
		return def
	}
	return f
}
