package common

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	OCR         OCRConfig         `yaml:"ocr"`
	NER         NERConfig         `yaml:"ner"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Output      OutputConfig      `yaml:"output"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	CORSOrigins string `yaml:"cors_origins"`
	BodyLimit   int    `yaml:"body_limit"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract           string        `yaml:"tesseract"`
	Lang                string        `yaml:"lang"`
	PSM                 int           `yaml:"psm"`
	OEM                 int           `yaml:"oem"`
	TessdataDir         string        `yaml:"tessdata_dir"`
	EnableTSVConfidence bool          `yaml:"enable_tsv_confidence"`
	Timeout             time.Duration `yaml:"-"` // env only
}

// NERConfig holds the token-classification service configuration.
// An empty BaseURL disables the model-assisted extractor entirely and the
// pipeline runs regex-only.
type NERConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"-"` // env only
	ScoreThreshold float32       `yaml:"score_threshold"`
	MaxChars       int           `yaml:"max_chars"`
}

// EmbedderConfig holds the OpenAI-compatible embeddings client configuration
type EmbedderConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"-"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"-"` // env only
	MaxRetries int           `yaml:"max_retries"`
}

// VectorStoreConfig holds the Qdrant connection details
type VectorStoreConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"-"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"-"` // env only
}

// CatalogConfig holds the local processing-catalog database location
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig holds the flat-file sink location
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// PipelineConfig holds orchestrator thresholds
type PipelineConfig struct {
	DataDir         string `yaml:"data_dir"`
	MinTextLength   int    `yaml:"min_text_length"`
	DefaultLimit    int    `yaml:"default_limit"`
	StatsSampleSize int    `yaml:"stats_sample_size"`
}

// LoadConfig builds the configuration from built-in defaults, an optional
// YAML file (CONFIG_FILE, falling back to ./config.yaml when present), and
// finally environment variables, which win over the file.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parsing "+path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, NewAppError("CONFIG_ERROR", "reading "+path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: "*",
			BodyLimit:   12 * 1024 * 1024,
		},
		OCR: OCRConfig{
			Tesseract: "tesseract",
			Lang:      "eng",
			PSM:       6,
			Timeout:   60 * time.Second,
		},
		NER: NERConfig{
			Timeout:        30 * time.Second,
			ScoreThreshold: 0.8,
			MaxChars:       512,
		},
		Embedder: EmbedderConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Timeout:    30 * time.Second,
			MaxRetries: 5,
		},
		VectorStore: VectorStoreConfig{
			URL:        "http://localhost:6333",
			Collection: "documents",
			Timeout:    15 * time.Second,
		},
		Catalog: CatalogConfig{Path: "./catalog.db"},
		Output:  OutputConfig{Dir: "./output"},
		Pipeline: PipelineConfig{
			DataDir:         "./data/docs-sm",
			MinTextLength:   10,
			DefaultLimit:    20,
			StatsSampleSize: 100,
		},
	}
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Server.CORSOrigins = getEnv("CORS_ORIGINS", c.Server.CORSOrigins)
	c.Server.BodyLimit = getEnvAsInt("SERVER_BODY_LIMIT", c.Server.BodyLimit)

	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Lang = getEnv("TESSERACT_LANG", c.OCR.Lang)
	c.OCR.PSM = getEnvAsInt("TESSERACT_PSM", c.OCR.PSM)
	c.OCR.OEM = getEnvAsInt("TESSERACT_OEM", c.OCR.OEM)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.EnableTSVConfidence = getEnvAsBool("TESSERACT_TSV_CONFIDENCE", c.OCR.EnableTSVConfidence)
	c.OCR.Timeout = getEnvAsDuration("OCR_TIMEOUT", c.OCR.Timeout)

	c.NER.BaseURL = getEnv("NER_SERVICE_URL", c.NER.BaseURL)
	c.NER.Timeout = getEnvAsDuration("NER_TIMEOUT", c.NER.Timeout)
	c.NER.ScoreThreshold = getEnvAsFloat32("NER_SCORE_THRESHOLD", c.NER.ScoreThreshold)
	c.NER.MaxChars = getEnvAsInt("NER_MAX_CHARS", c.NER.MaxChars)

	c.Embedder.BaseURL = getEnv("EMBEDDER_BASE_URL", c.Embedder.BaseURL)
	c.Embedder.APIKey = getEnv("EMBEDDER_API_KEY", os.Getenv("OPENAI_API_KEY"))
	c.Embedder.Model = getEnv("EMBEDDER_MODEL", c.Embedder.Model)
	c.Embedder.Timeout = getEnvAsDuration("EMBEDDER_TIMEOUT", c.Embedder.Timeout)
	c.Embedder.MaxRetries = getEnvAsInt("EMBEDDER_MAX_RETRIES", c.Embedder.MaxRetries)

	c.VectorStore.URL = getEnv("QDRANT_URL", c.VectorStore.URL)
	c.VectorStore.APIKey = getEnv("QDRANT_API_KEY", c.VectorStore.APIKey)
	c.VectorStore.Collection = getEnv("QDRANT_COLLECTION", c.VectorStore.Collection)
	c.VectorStore.Timeout = getEnvAsDuration("QDRANT_TIMEOUT", c.VectorStore.Timeout)

	c.Catalog.Path = getEnv("CATALOG_DB_PATH", c.Catalog.Path)
	c.Output.Dir = getEnv("OUTPUT_DIR", c.Output.Dir)

	c.Pipeline.DataDir = getEnv("DATA_DIR", c.Pipeline.DataDir)
	c.Pipeline.MinTextLength = getEnvAsInt("MIN_TEXT_LENGTH", c.Pipeline.MinTextLength)
	c.Pipeline.DefaultLimit = getEnvAsInt("DEFAULT_LIMIT", c.Pipeline.DefaultLimit)
	c.Pipeline.StatsSampleSize = getEnvAsInt("STATS_SAMPLE_SIZE", c.Pipeline.StatsSampleSize)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Embedder.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "EMBEDDER_API_KEY (or OPENAI_API_KEY) is required", ErrInvalidInput)
	}
	if c.VectorStore.URL == "" {
		return NewAppError("CONFIG_ERROR", "QDRANT_URL is required", ErrInvalidInput)
	}
	if c.VectorStore.Collection == "" {
		return NewAppError("CONFIG_ERROR", "QDRANT_COLLECTION is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "SERVER_ADDR is required", ErrInvalidInput)
	}
	return nil
}
