package configuration

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"streamvault/internal/configuration/util"

	"gopkg.in/yaml.v3"
)

//go:embed static/application.yml
var baseConfig string

// Load reads the embedded base configuration, then merges
// application-<profile>.yml from profileDir over it when that file exists.
func Load(profileDir string) (*Properties, error) {
	cfg, err := loadBaseConfig()
	if err != nil {
		return nil, err
	}

	if err := loadProfileConfig(cfg, profileDir); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadBaseConfig() (*Properties, error) {
	expanded, err := util.ExpandEnvStrict(baseConfig)
	if err != nil {
		return nil, fmt.Errorf("expand base config: %w", err)
	}

	cfg := Properties{}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse base config: %w", err)
	}

	return &cfg, nil
}

func loadProfileConfig(cfg *Properties, profileDir string) error {
	if profileDir == "" || cfg.App.Profile == "" {
		return nil
	}

	name := "application-" + cfg.App.Profile
	profileConfig, err := util.LoadAndExpandYaml(profileDir, name)
	if errors.Is(err, util.ErrConfigNotFound) {
		slog.Debug("no profile config, using defaults", "profile", cfg.App.Profile, "dir", profileDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load profile config %s: %w", name, err)
	}

	if err := yaml.Unmarshal([]byte(profileConfig), cfg); err != nil {
		return fmt.Errorf("parse profile config %s: %w", name, err)
	}

	slog.Debug("profile config applied", "profile", cfg.App.Profile)
	return nil
}

func (p *Properties) Validate() error {
	var problems []string

	if p.Transport.Port <= 0 || p.Transport.Port > 65535 {
		problems = append(problems, fmt.Sprintf("transport.port %d out of range", p.Transport.Port))
	}
	if p.Transport.Network == "" {
		problems = append(problems, "transport.network is required")
	}
	if !strings.HasPrefix(p.Transport.Path, "/") {
		problems = append(problems, "transport.path must start with /")
	}
	if p.Storage.StorageDir == "" {
		problems = append(problems, "storage.storage-dir is required")
	}
	if p.Storage.BackupDir == "" {
		problems = append(problems, "storage.backup-dir is required")
	}
	if p.Storage.SaveInterval <= 0 {
		problems = append(problems, "storage.save-interval must be positive")
	}
	if p.Storage.ShutdownTimeout <= 0 {
		problems = append(problems, "storage.shutdown-timeout must be positive")
	}
	if p.Storage.NotifyWorkers <= 0 {
		problems = append(problems, "storage.notify-workers must be positive")
	}
	if p.Storage.NotifyQueueSize <= 0 {
		problems = append(problems, "storage.notify-queue-size must be positive")
	}
	if p.Metrics.Enabled && p.Metrics.Address == "" {
		problems = append(problems, "metrics.address is required when metrics are enabled")
	}
	if p.Admin.Enabled && p.Admin.Address == "" {
		problems = append(problems, "admin.address is required when admin is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
