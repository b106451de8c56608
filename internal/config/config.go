package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	KubeconfigPath string   `mapstructure:"kubeconfig_path"`
	KubeContext    string   `mapstructure:"kube_context"`

	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"` // graceful shutdown wait
	RequestTimeoutSec  int `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = server default

	K8sTimeoutSec      int     `mapstructure:"k8s_timeout_sec"`        // outbound K8s API call bound; 0 = default
	K8sRateLimitPerSec float64 `mapstructure:"k8s_rate_limit_per_sec"` // token bucket rate (req/s); 0 = no limit
	K8sRateLimitBurst  int     `mapstructure:"k8s_rate_limit_burst"`   // token bucket burst; 0 = no limit

	LoaderWorkers    int `mapstructure:"loader_workers"`    // max concurrent load workers
	CacheMaxEntries  int `mapstructure:"cache_max_entries"` // LRU capacity bound on the result cache
	StaleMaxAgeSec   int `mapstructure:"stale_max_age_sec"` // max age for degraded stale-cache reads
	FanoutNamespaces int `mapstructure:"fanout_namespaces"` // namespace cap for all-namespace loads
	SearchNamespaces int `mapstructure:"search_namespaces"` // namespace cap for searches (comprehensive)
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/kubeglass/")
	viper.AddConfigPath("$HOME/.kubeglass")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("kubeconfig_path", "")
	viper.SetDefault("kube_context", "")
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("k8s_timeout_sec", 30)
	viper.SetDefault("k8s_rate_limit_per_sec", 0) // 0 = disabled
	viper.SetDefault("k8s_rate_limit_burst", 0)
	viper.SetDefault("loader_workers", 8)
	viper.SetDefault("cache_max_entries", 256)
	viper.SetDefault("stale_max_age_sec", 3600)
	viper.SetDefault("fanout_namespaces", 20)
	viper.SetDefault("search_namespaces", 50)

	// Environment variables
	viper.SetEnvPrefix("KUBEGLASS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
