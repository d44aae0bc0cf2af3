package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for ark.
type Config struct {
	HostID    string          `toml:"host_id"`
	BaseDir   string          `toml:"base_dir"`
	LogDir    string          `toml:"log_dir"`
	Store     StoreConfig     `toml:"store"`
	Snapshots SnapshotsConfig `toml:"snapshots"`
	Bundles   BundlesConfig   `toml:"bundles"`
	Manifests ManifestsConfig `toml:"manifests"`
	Restore   RestoreConfig   `toml:"restore"`
	Retention RetentionConfig `toml:"retention"`
	Archive   ArchiveConfig   `toml:"archive"`
	Seal      SealConfig      `toml:"seal"`
	Database  DatabaseConfig  `toml:"database"`
}

// StoreConfig configures the durable store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "filesystem" or "memory"
	Name string `toml:"name"` // ledger name; artifact filenames derive from it
	Dir  string `toml:"dir,omitempty"`
}

// SnapshotsConfig configures snapshot artifact placement.
type SnapshotsConfig struct {
	Dir string `toml:"dir"`
}

// BundlesConfig configures bundle artifact placement and naming.
type BundlesConfig struct {
	Dir    string `toml:"dir"`
	Prefix string `toml:"prefix"` // artifact names are <prefix>-<YYYY-MM>.bundle
}

// ManifestsConfig configures the manifest repository backend.
type ManifestsConfig struct {
	Type string `toml:"type"` // "filesystem" or "memory"
	Dir  string `toml:"dir,omitempty"`
}

// RestoreConfig configures the restore workspace.
type RestoreConfig struct {
	WorkDir string `toml:"work_dir"`
}

// RetentionConfig is the declarative snapshot-keep rule set.
type RetentionConfig struct {
	HourlyCount        int `toml:"hourly_count"`
	DailyCount         int `toml:"daily_count"`
	WeeklyCount        int `toml:"weekly_count"`
	MonthlyCount       int `toml:"monthly_count"`
	TotalRetentionDays int `toml:"total_retention_days"`
}

// ArchiveConfig configures the off-site archive transport.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "none", "memory", "filesystem", or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// SealConfig holds paths to the age key pair used for bundle sealing.
type SealConfig struct {
	Type           string `toml:"type"` // "none" (default), "age", or "test"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// DatabaseConfig configures the operations index.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config with the provided values and default
// directory layout under baseDir.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type: "filesystem",
			Name: "ledger",
			Dir:  filepath.Join(baseDir, "store"),
		},
		Snapshots: SnapshotsConfig{
			Dir: filepath.Join(baseDir, "snapshots"),
		},
		Bundles: BundlesConfig{
			Dir:    filepath.Join(baseDir, "bundles"),
			Prefix: "ark",
		},
		Manifests: ManifestsConfig{
			Type: "filesystem",
			Dir:  filepath.Join(baseDir, "manifests"),
		},
		Restore: RestoreConfig{
			WorkDir: filepath.Join(baseDir, "restore"),
		},
		Retention: RetentionConfig{
			HourlyCount:        24,
			DailyCount:         7,
			WeeklyCount:        4,
			MonthlyCount:       18,
			TotalRetentionDays: 548,
		},
		Archive: ArchiveConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "archive"),
		},
		Seal: SealConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "ark.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "ark.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
