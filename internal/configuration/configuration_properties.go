package configuration

import (
	"net"
	"strconv"
	"time"
)

type Properties struct {
	App       AppConfigurationProperties       `yaml:"app"`
	Transport TransportConfigurationProperties `yaml:"transport"`
	Storage   StorageConfigurationProperties   `yaml:"storage"`
	Metrics   MetricsConfigurationProperties   `yaml:"metrics"`
	Admin     AdminConfigurationProperties     `yaml:"admin"`
}

type AppConfigurationProperties struct {
	Profile  string `yaml:"profile"`
	LogLevel string `yaml:"log-level"`
}

type TransportConfigurationProperties struct {
	Network      string        `yaml:"network"`
	Address      string        `yaml:"address"`
	Port         int           `yaml:"port"`
	Path         string        `yaml:"path"`
	WriteTimeout time.Duration `yaml:"write-timeout"`
	ReadLimit    int64         `yaml:"read-limit"`
}

type StorageConfigurationProperties struct {
	StorageDir      string        `yaml:"storage-dir"`
	BackupDir       string        `yaml:"backup-dir"`
	SaveInterval    time.Duration `yaml:"save-interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
	NotifyWorkers   int           `yaml:"notify-workers"`
	NotifyQueueSize int           `yaml:"notify-queue-size"`
}

type MetricsConfigurationProperties struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type AdminConfigurationProperties struct {
	Enabled bool          `yaml:"enabled"`
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *TransportConfigurationProperties) ListenAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// BackupInterval is twice the primary save interval.
func (c *StorageConfigurationProperties) BackupInterval() time.Duration {
	return 2 * c.SaveInterval
}
