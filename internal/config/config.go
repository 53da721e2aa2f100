// restockplan/internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Pipeline PipelineConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether any database connection was configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// DSN returns the connection string, preferring an explicit URL.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type AppConfig struct {
	LogLevel  string
	LogFormat string
	DataDir   string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	InputPrefix  string
	OutputPrefix string
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
	FolderPath      string
}

type PipelineConfig struct {
	Workers             int
	RetryAttempts       int
	RetryBackoffSeconds int
}

// ExtractFiles names the input extracts inside the input directory.
type ExtractFiles struct {
	Inventory  string `mapstructure:"inventory"`
	Sales      string `mapstructure:"sales"`
	Margins    string `mapstructure:"margins"`
	Stock      string `mapstructure:"stock"`
	Products   string `mapstructure:"products"`
	Exclusions string `mapstructure:"exclusions"`
}

type PriorityConfig struct {
	MarginThreshold float64 `mapstructure:"margin_threshold"`
	DOHLimit        float64 `mapstructure:"doh_limit"`
	DSILimit        float64 `mapstructure:"dsi_limit"`
	Tiers           int     `mapstructure:"tiers"`
}

type EngineConfig struct {
	Source               string             `mapstructure:"source"`
	InputDir             string             `mapstructure:"input_dir"`
	OutputDir            string             `mapstructure:"output_dir"`
	Files                ExtractFiles       `mapstructure:"files"`
	SheetSkipRows        int                `mapstructure:"sheet_skip_rows"`
	MarginFractional     bool               `mapstructure:"margin_fractional"`
	Registry             domain.Registry    `mapstructure:"registry"`
	Categories           []string           `mapstructure:"categories"`
	WarehousesOfInterest []string           `mapstructure:"warehouses_of_interest"`
	Priority             PriorityConfig     `mapstructure:"priority"`
	RefreshTypeSummaries bool               `mapstructure:"refresh_type_summaries"`
	DSIEndDate           string             `mapstructure:"dsi_end_date"`
	CapacityBasis        string             `mapstructure:"capacity_basis"`
	CapacityFloorRatio   float64            `mapstructure:"capacity_floor_ratio"`
	TargetProfile        map[string]float64 `mapstructure:"target_profile"`
	DefaultBoxQuantity   float64            `mapstructure:"default_box_quantity"`
	WriteXLSX            bool               `mapstructure:"write_xlsx"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "restockplan")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("APP_DATA_DIR", "./data")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 3600)
	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "restockplan")
	v.SetDefault("MINIO_USE_SSL", true)
	v.SetDefault("STORAGE_INPUT_PREFIX", "extracts/")
	v.SetDefault("STORAGE_OUTPUT_PREFIX", "reports/")
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("DRIVE_FOLDER_ID", "")
	v.SetDefault("DRIVE_FOLDER_PATH", "")
	v.SetDefault("PIPELINE_WORKERS", 4)
	v.SetDefault("PIPELINE_RETRY_ATTEMPTS", 2)
	v.SetDefault("PIPELINE_RETRY_BACKOFF_SECONDS", 5)

	v.SetDefault("engine.source", "local")
	v.SetDefault("engine.input_dir", "./data/input")
	v.SetDefault("engine.output_dir", "./data/output")
	v.SetDefault("engine.files.inventory", "inventory.csv")
	v.SetDefault("engine.files.sales", "sales.csv")
	v.SetDefault("engine.files.margins", "margins.csv")
	v.SetDefault("engine.files.stock", "stock.csv")
	v.SetDefault("engine.files.products", "products.csv")
	v.SetDefault("engine.files.exclusions", "exclusions.csv")
	v.SetDefault("engine.sheet_skip_rows", 0)
	v.SetDefault("engine.margin_fractional", false)
	v.SetDefault("engine.priority.margin_threshold", 54.47)
	v.SetDefault("engine.priority.doh_limit", 180)
	v.SetDefault("engine.priority.dsi_limit", 90)
	v.SetDefault("engine.priority.tiers", 4)
	v.SetDefault("engine.refresh_type_summaries", false)
	v.SetDefault("engine.dsi_end_date", "last_sale")
	v.SetDefault("engine.capacity_basis", string(domain.CapacityByCogs))
	v.SetDefault("engine.capacity_floor_ratio", 0.7)
	v.SetDefault("engine.target_profile", map[string]float64{"A": 20, "B": 50, "C": 20, "D": 10})
	v.SetDefault("engine.default_box_quantity", 1)
	v.SetDefault("engine.write_xlsx", true)
}

// Load reads configuration from defaults, an optional YAML file, .env and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			LogLevel:  v.GetString("LOG_LEVEL"),
			LogFormat: v.GetString("LOG_FORMAT"),
			DataDir:   v.GetString("APP_DATA_DIR"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTLSeconds:    v.GetInt("CACHE_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("STORAGE_ENABLED"),
			Endpoint:     v.GetString("MINIO_ENDPOINT"),
			AccessKey:    v.GetString("MINIO_ACCESS_KEY"),
			SecretKey:    v.GetString("MINIO_SECRET_KEY"),
			Bucket:       v.GetString("MINIO_BUCKET"),
			UseSSL:       v.GetBool("MINIO_USE_SSL"),
			InputPrefix:  v.GetString("STORAGE_INPUT_PREFIX"),
			OutputPrefix: v.GetString("STORAGE_OUTPUT_PREFIX"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        v.GetString("DRIVE_FOLDER_ID"),
			FolderPath:      v.GetString("DRIVE_FOLDER_PATH"),
		},
		Pipeline: PipelineConfig{
			Workers:             v.GetInt("PIPELINE_WORKERS"),
			RetryAttempts:       v.GetInt("PIPELINE_RETRY_ATTEMPTS"),
			RetryBackoffSeconds: v.GetInt("PIPELINE_RETRY_BACKOFF_SECONDS"),
		},
	}

	// Unmarshal merges defaults leaf by leaf; UnmarshalKey would take a
	// partial engine section from the file as the whole section.
	var sections struct {
		Engine EngineConfig `mapstructure:"engine"`
	}
	if err := v.Unmarshal(&sections); err != nil {
		return nil, fmt.Errorf("decode engine config: %w", err)
	}
	cfg.Engine = sections.Engine
	cfg.Engine.TargetProfile = normalizeProfile(cfg.Engine.TargetProfile)

	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the engine section for values the pipeline cannot run with.
func (e EngineConfig) Validate() error {
	switch e.DSIEndDate {
	case "last_sale", "last_snapshot":
	default:
		return fmt.Errorf("engine.dsi_end_date: unknown value %q", e.DSIEndDate)
	}
	switch domain.CapacityBasis(e.CapacityBasis) {
	case domain.CapacityByCogs, domain.CapacityByQuantity:
	default:
		return fmt.Errorf("engine.capacity_basis: unknown value %q", e.CapacityBasis)
	}
	if e.Priority.Tiers != 3 && e.Priority.Tiers != 4 {
		return fmt.Errorf("engine.priority.tiers must be 3 or 4, got %d", e.Priority.Tiers)
	}
	if e.CapacityFloorRatio <= 0 || e.CapacityFloorRatio > 1 {
		return fmt.Errorf("engine.capacity_floor_ratio must be in (0, 1], got %v", e.CapacityFloorRatio)
	}
	return nil
}

// viper lower-cases map keys; tiers are upper-case letters everywhere else.
func normalizeProfile(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}

// EnsureDir creates dir if it does not exist yet.
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
