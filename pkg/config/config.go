package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backends accepted by the intake pipeline.
const (
	WindowsStoreFile     = "file"
	WindowsStorePostgres = "postgres"

	RecordsBackendExcel  = "excel"
	RecordsBackendSheets = "sheets"

	DocumentsBackendLocal = "local"
	DocumentsBackendDrive = "drive"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Admin     AdminConfig
	CORS      CORSConfig
	Log       LogConfig
	Intake    IntakeConfig
	Windows   WindowsConfig
	Records   RecordsConfig
	Documents DocumentsConfig
	Google    GoogleConfig
	Receipts  ReceiptsConfig
	Uploads   UploadsConfig
	Remote    RemoteConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	LockTTL  time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AdminConfig holds the coordinator credential. The password is only ever
// compared against a bcrypt hash.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// IntakeConfig carries form-level settings.
type IntakeConfig struct {
	Timezone string
	Programs []string
}

// WindowsConfig selects where enrollment windows are persisted.
type WindowsConfig struct {
	Store    string
	FilePath string
}

// RecordsConfig selects the tabular record sink.
type RecordsConfig struct {
	Backend       string
	ExcelPath     string
	SpreadsheetID string
	SheetName     string
}

// DocumentsConfig selects where dossiers and final works are stored.
type DocumentsConfig struct {
	Backend       string
	LocalDir      string
	StagingDir    string
	DriveFolderID string
	SharePublic   bool
}

type GoogleConfig struct {
	CredentialsFile string
}

// ReceiptsConfig controls receipt storage and signed download links.
type ReceiptsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

type UploadsConfig struct {
	MaxFileSizeBytes int64
	MaxRequestBytes  int64
}

// RemoteConfig bounds every call to a cloud API.
type RemoteConfig struct {
	Timeout        time.Duration
	RetryAttempts  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		LockTTL:  parseDuration(v.GetString("REDIS_LOCK_TTL"), 30*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 8*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Admin = AdminConfig{
		Username:     v.GetString("ADMIN_USERNAME"),
		PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Intake = IntakeConfig{
		Timezone: v.GetString("TIMEZONE"),
		Programs: splitAndTrim(v.GetString("ACADEMIC_PROGRAMS")),
	}

	cfg.Windows = WindowsConfig{
		Store:    strings.ToLower(v.GetString("WINDOWS_STORE")),
		FilePath: v.GetString("WINDOWS_FILE"),
	}

	cfg.Records = RecordsConfig{
		Backend:       strings.ToLower(v.GetString("RECORDS_BACKEND")),
		ExcelPath:     v.GetString("RECORDS_EXCEL_FILE"),
		SpreadsheetID: v.GetString("RECORDS_SPREADSHEET_ID"),
		SheetName:     v.GetString("RECORDS_SHEET_NAME"),
	}

	cfg.Documents = DocumentsConfig{
		Backend:       strings.ToLower(v.GetString("DOCUMENTS_BACKEND")),
		LocalDir:      v.GetString("DOCUMENTS_DIR"),
		StagingDir:    v.GetString("DOCUMENTS_STAGING_DIR"),
		DriveFolderID: v.GetString("DRIVE_FOLDER_ID"),
		SharePublic:   v.GetBool("DRIVE_SHARE_PUBLIC"),
	}

	cfg.Google = GoogleConfig{
		CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
	}

	cfg.Receipts = ReceiptsConfig{
		StorageDir:      v.GetString("RECEIPTS_DIR"),
		SignedURLSecret: v.GetString("RECEIPTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("RECEIPTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("RECEIPTS_CLEANUP_INTERVAL"), time.Hour),
	}

	maxFile := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxFile <= 0 {
		maxFile = 10 * 1024 * 1024
	}
	maxRequest := v.GetInt64("UPLOAD_MAX_REQUEST_SIZE")
	if maxRequest <= 0 {
		maxRequest = 64 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		MaxFileSizeBytes: maxFile,
		MaxRequestBytes:  maxRequest,
	}

	cfg.Remote = RemoteConfig{
		Timeout:        parseDuration(v.GetString("REMOTE_TIMEOUT"), 30*time.Second),
		RetryAttempts:  v.GetInt("REMOTE_RETRY_ATTEMPTS"),
		InitialBackoff: parseDuration(v.GetString("REMOTE_RETRY_INITIAL_BACKOFF"), 500*time.Millisecond),
		MaxBackoff:     parseDuration(v.GetString("REMOTE_RETRY_MAX_BACKOFF"), 8*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Windows.Store {
	case WindowsStoreFile, WindowsStorePostgres:
	default:
		return errors.New("WINDOWS_STORE must be file or postgres")
	}
	switch c.Records.Backend {
	case RecordsBackendExcel:
	case RecordsBackendSheets:
		if c.Records.SpreadsheetID == "" {
			return errors.New("RECORDS_SPREADSHEET_ID is required for the sheets backend")
		}
	default:
		return errors.New("RECORDS_BACKEND must be excel or sheets")
	}
	switch c.Documents.Backend {
	case DocumentsBackendLocal:
	case DocumentsBackendDrive:
		if c.Documents.DriveFolderID == "" {
			return errors.New("DRIVE_FOLDER_ID is required for the drive backend")
		}
	default:
		return errors.New("DOCUMENTS_BACKEND must be local or drive")
	}
	if c.UsesGoogle() && c.Google.CredentialsFile == "" {
		return errors.New("GOOGLE_CREDENTIALS_FILE is required for Google backends")
	}
	if c.Env == EnvProduction && c.JWT.Secret == "dev_secret" {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

// UsesGoogle reports whether any backend talks to Google APIs.
func (c *Config) UsesGoogle() bool {
	return c.Records.Backend == RecordsBackendSheets || c.Documents.Backend == DocumentsBackendDrive
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "teg_intake")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_LOCK_TTL", "30s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "8h")
	v.SetDefault("JWT_ISSUER", "teg-intake-api")

	v.SetDefault("ADMIN_USERNAME", "coordinador")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMEZONE", "America/Caracas")
	v.SetDefault("ACADEMIC_PROGRAMS", strings.Join([]string{
		"Ingeniería Civil",
		"Ingeniería Industrial",
		"Ingeniería Mecánica",
		"Desarrollo Empresarial",
		"Enfermería Integral",
		"Artes Audiovisuales",
		"Fisioterapia",
	}, ","))

	v.SetDefault("WINDOWS_STORE", WindowsStoreFile)
	v.SetDefault("WINDOWS_FILE", "./data/config_fechas.csv")

	v.SetDefault("RECORDS_BACKEND", RecordsBackendExcel)
	v.SetDefault("RECORDS_EXCEL_FILE", "./data/base_datos.xlsx")
	v.SetDefault("RECORDS_SPREADSHEET_ID", "")
	v.SetDefault("RECORDS_SHEET_NAME", "Inscripciones")

	v.SetDefault("DOCUMENTS_BACKEND", DocumentsBackendLocal)
	v.SetDefault("DOCUMENTS_DIR", "./archivos")
	v.SetDefault("DOCUMENTS_STAGING_DIR", "./archivos/.staging")
	v.SetDefault("DRIVE_FOLDER_ID", "")
	v.SetDefault("DRIVE_SHARE_PUBLIC", false)

	v.SetDefault("GOOGLE_CREDENTIALS_FILE", "")

	v.SetDefault("RECEIPTS_DIR", "./data/constancias")
	v.SetDefault("RECEIPTS_SIGNED_URL_SECRET", "dev_receipts_secret")
	v.SetDefault("RECEIPTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("RECEIPTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("UPLOAD_MAX_REQUEST_SIZE", 64*1024*1024)

	v.SetDefault("REMOTE_TIMEOUT", "30s")
	v.SetDefault("REMOTE_RETRY_ATTEMPTS", 3)
	v.SetDefault("REMOTE_RETRY_INITIAL_BACKOFF", "500ms")
	v.SetDefault("REMOTE_RETRY_MAX_BACKOFF", "8s")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
