package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/3leaps/benchline/pkg/status"
)

const (
	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "BENCHLINE"
	// ConfigName is the base name of the optional config file.
	ConfigName = "benchline"
)

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// EnvSpec maps a short environment variable to a config path. Every path
// is also reachable through BENCHLINE_<SECTION>_<KEY>.
type EnvSpec struct {
	Name string
	Path string
}

func getEnvSpecs() []EnvSpec {
	short := [][2]string{
		{"HOST", "server.host"},
		{"PORT", "server.port"},
		{"READ_TIMEOUT", "server.read_timeout"},
		{"WRITE_TIMEOUT", "server.write_timeout"},
		{"SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
		{"LOG_LEVEL", "logging.level"},
		{"LOG_PROFILE", "logging.profile"},
		{"METRICS_ENABLED", "metrics.enabled"},
		{"DB", "store.path"},
		{"DB_URL", "store.url"},
		{"DB_AUTH_TOKEN", "store.auth_token"},
		{"ARTIFACTS_PROVIDER", "artifacts.provider"},
		{"ARTIFACTS_BUCKET", "artifacts.bucket"},
	}
	specs := make([]EnvSpec, 0, len(short))
	for _, s := range short {
		specs = append(specs, EnvSpec{Name: EnvPrefix + "_" + s[0], Path: s[1]})
	}
	return specs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", "benchline.db")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("backend.root", filepath.Join(os.TempDir(), "benchline", "executions"))
	v.SetDefault("backend.slots", map[string]int{"default": 4})
	v.SetDefault("backend.kill_rate", 10.0)
	v.SetDefault("backend.kill_burst", 5)

	v.SetDefault("scheduler.reconcile_interval", "1m")
	v.SetDefault("scheduler.rerun_interval", "5m")
	v.SetDefault("scheduler.rerun_codes", []string{"error_submit_fail", "error_backend_reject"})
	v.SetDefault("scheduler.max_reruns", 1)

	v.SetDefault("stats.include_unknown", false)

	v.SetDefault("artifacts.provider", "")
	v.SetDefault("artifacts.root", "")
	v.SetDefault("artifacts.bucket", "")
	v.SetDefault("artifacts.prefix", "")
	v.SetDefault("artifacts.region", "")
	v.SetDefault("artifacts.endpoint", "")
	v.SetDefault("artifacts.profile", "")
	v.SetDefault("artifacts.force_path_style", false)
	v.SetDefault("artifacts.detect_region", false)
}

// Load reads the configuration without an explicit file. See LoadFile.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", overrides...)
}

// LoadFile reads the configuration. When path is empty, benchline.yaml is
// looked up in the working directory and the user config directory; a
// missing file is not an error. Overrides win over everything else.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(spec.Path, ".", "_")), spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		for _, p := range getUserConfigPaths() {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		statusCodeHook(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Scheduler.MaxReruns < 0 {
		return fmt.Errorf("scheduler.max_reruns must be >= 0")
	}
	switch c.Artifacts.Provider {
	case "", "file", "s3":
	default:
		return fmt.Errorf("artifacts.provider %q: expected file or s3", c.Artifacts.Provider)
	}
	return nil
}

func getUserConfigPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ConfigName))
	}
	return append(paths, "/etc/benchline")
}

// statusCodeHook decodes status names ("error_general") into status codes.
func statusCodeHook() mapstructure.DecodeHookFuncType {
	codeType := reflect.TypeOf(status.Code(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != codeType || from.Kind() != reflect.String {
			return data, nil
		}
		return status.Parse(reflect.ValueOf(data).String())
	}
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}
