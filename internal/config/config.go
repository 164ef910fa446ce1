package config

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. BT_RUN_BET_AMOUNT
const EnvPrefix = "BT"

// RunConfig is the immutable per-run configuration handed to the engine
type RunConfig struct {
	Label            string             `mapstructure:"label" json:"label"`
	BetAmount        float64            `mapstructure:"bet_amount" json:"bet_amount"`
	WindowStartTime  int                `mapstructure:"window_start_time" json:"window_start_time"`
	WindowEndTime    int                `mapstructure:"window_end_time" json:"window_end_time"`
	AveragingWindows []int              `mapstructure:"averaging_windows" json:"averaging_windows"`
	AssetClass       string             `mapstructure:"asset_class" json:"asset_class"`
	DayCount         int                `mapstructure:"day_count" json:"day_count"`
	MaxSplitBuy      int                `mapstructure:"max_split_buy" json:"max_split_buy"`
	AngleSensitivity float64            `mapstructure:"angle_sensitivity" json:"angle_sensitivity"`
	ExposureTrim     float64            `mapstructure:"exposure_trim" json:"exposure_trim"`
	FeeSchedule      string             `mapstructure:"fee_schedule" json:"fee_schedule"`
	Workers          int                `mapstructure:"workers" json:"workers"`
	Params           map[string]float64 `mapstructure:"params" json:"params,omitempty"`
}

// AppConfig wraps the run with everything the CLI needs around it
type AppConfig struct {
	Run RunConfig `mapstructure:"run"`

	Source        string   `mapstructure:"source"`
	DataRoot      string   `mapstructure:"data_root"`
	Instruments   []string `mapstructure:"instruments"`
	BuyRuleFile   string   `mapstructure:"buy_rule_file"`
	SellRuleFile  string   `mapstructure:"sell_rule_file"`
	ClickHouseDSN string   `mapstructure:"clickhouse_dsn"`
	PostgresDSN   string   `mapstructure:"postgres_dsn"`

	SessionStart   int  `mapstructure:"session_start"`
	SessionEnd     int  `mapstructure:"session_end"`
	DropDuplicates bool `mapstructure:"drop_duplicates"`

	Bybit struct {
		Category string `mapstructure:"category"`
		Interval string `mapstructure:"interval"`
		Start    string `mapstructure:"start"`
		End      string `mapstructure:"end"`
		Demo     bool   `mapstructure:"demo"`
	} `mapstructure:"bybit"`

	OutputDir     string   `mapstructure:"output_dir"`
	OutputFormats []string `mapstructure:"output_formats"`
	MetricsAddr   string   `mapstructure:"metrics_addr"`
	LogDir        string   `mapstructure:"log_dir"`
	LogLevel      string   `mapstructure:"log_level"`
}

// DefaultRunConfig returns a run with the documented defaults
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Label:            "backtest",
		BetAmount:        1_000_000,
		AveragingWindows: []int{5, 20, 60},
		AssetClass:       types.AssetEquity.String(),
		AngleSensitivity: 1,
		ExposureTrim:     0.01,
	}
}

// Class returns the parsed asset class, equity when unset
func (c *RunConfig) Class() types.AssetClass {
	class, err := types.ParseAssetClass(c.AssetClass)
	if err != nil {
		return types.AssetEquity
	}
	return class
}

// WorkerCount resolves Workers, 0 meaning one per CPU
func (c *RunConfig) WorkerCount() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// InWindow reports whether ts falls inside the trading window.
// Daily timestamps and a zero bound are always inside.
func (c *RunConfig) InWindow(ts int64) bool {
	tod := types.TimeOfDay(ts)
	if tod < 0 {
		return true
	}
	if c.WindowStartTime > 0 && tod < c.WindowStartTime {
		return false
	}
	if c.WindowEndTime > 0 && tod > c.WindowEndTime {
		return false
	}
	return true
}

// WithParams returns a copy of c with params merged over the existing ones
func (c *RunConfig) WithParams(params map[string]float64) *RunConfig {
	cp := *c
	cp.AveragingWindows = append([]int(nil), c.AveragingWindows...)
	cp.Params = make(map[string]float64, len(c.Params)+len(params))
	for k, v := range c.Params {
		cp.Params[k] = v
	}
	for k, v := range params {
		cp.Params[k] = v
	}
	return &cp
}

// ParamNames returns the parameter names in sorted order
func (c *RunConfig) ParamNames() []string {
	names := make([]string, 0, len(c.Params))
	for k := range c.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks the run configuration
func (c *RunConfig) Validate() error {
	if c.BetAmount <= 0 {
		return invalid("bet_amount must be positive, got %v", c.BetAmount)
	}
	for _, w := range c.AveragingWindows {
		if w <= 0 {
			return invalid("averaging window must be positive, got %d", w)
		}
	}
	if err := validTime(c.WindowStartTime); err != nil {
		return invalid("window_start_time: %v", err)
	}
	if err := validTime(c.WindowEndTime); err != nil {
		return invalid("window_end_time: %v", err)
	}
	if c.WindowStartTime > 0 && c.WindowEndTime > 0 && c.WindowStartTime > c.WindowEndTime {
		return invalid("trading window %06d-%06d is inverted", c.WindowStartTime, c.WindowEndTime)
	}
	if _, err := types.ParseAssetClass(c.AssetClass); err != nil {
		return invalid("%v", err)
	}
	if c.DayCount < 0 {
		return invalid("day_count must not be negative")
	}
	if c.MaxSplitBuy < 0 {
		return invalid("max_split_buy must not be negative")
	}
	if c.ExposureTrim < 0 || c.ExposureTrim >= 0.5 {
		return invalid("exposure_trim must be in [0, 0.5), got %v", c.ExposureTrim)
	}
	return nil
}

func validTime(hhmmss int) error {
	if hhmmss == 0 {
		return nil
	}
	h, m, s := hhmmss/10000, hhmmss/100%100, hhmmss%100
	if hhmmss < 0 || h > 23 || m > 59 || s > 59 {
		return fmt.Errorf("%d is not a HHMMSS time of day", hhmmss)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return bterrors.NewConfigurationError("config", "validate", fmt.Sprintf(format, args...))
}

// Validate checks the application configuration including the run
func (c *AppConfig) Validate() error {
	if err := c.Run.Validate(); err != nil {
		return err
	}
	switch c.Source {
	case "csv":
		if c.DataRoot == "" {
			return invalid("data_root is required for the csv source")
		}
	case "clickhouse":
		if c.ClickHouseDSN == "" {
			return invalid("clickhouse_dsn is required for the clickhouse source")
		}
	case "bybit":
		if c.Run.Class() != types.AssetCrypto {
			return invalid("the bybit source only serves crypto runs")
		}
	default:
		return invalid("unknown source %q, expected csv, clickhouse or bybit", c.Source)
	}
	if err := validTime(c.SessionStart); err != nil {
		return invalid("session_start: %v", err)
	}
	if err := validTime(c.SessionEnd); err != nil {
		return invalid("session_end: %v", err)
	}
	if c.SessionStart > 0 && c.SessionEnd > 0 && c.SessionStart > c.SessionEnd {
		return invalid("session %06d-%06d is inverted", c.SessionStart, c.SessionEnd)
	}
	for _, f := range c.OutputFormats {
		switch strings.ToLower(f) {
		case "console", "csv", "json", "excel":
		default:
			return invalid("unknown output format %q", f)
		}
	}
	return nil
}

// LoadEnvFile loads a dotenv file when it exists
func LoadEnvFile(path string) error {
	if path == "" {
		path = getEnv("BT_ENV_FILE", ".env")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads defaults, then the optional config file, then BT_ environment
// overrides.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, bterrors.WrapError(err, bterrors.ErrorCategoryConfiguration, "config", "read")
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, bterrors.WrapError(err, bterrors.ErrorCategoryConfiguration, "config", "unmarshal")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	run := DefaultRunConfig()
	v.SetDefault("run.label", run.Label)
	v.SetDefault("run.bet_amount", run.BetAmount)
	v.SetDefault("run.window_start_time", 0)
	v.SetDefault("run.window_end_time", 0)
	v.SetDefault("run.averaging_windows", run.AveragingWindows)
	v.SetDefault("run.asset_class", run.AssetClass)
	v.SetDefault("run.day_count", 0)
	v.SetDefault("run.max_split_buy", 0)
	v.SetDefault("run.angle_sensitivity", run.AngleSensitivity)
	v.SetDefault("run.exposure_trim", run.ExposureTrim)
	v.SetDefault("run.fee_schedule", "")
	v.SetDefault("run.workers", 0)

	v.SetDefault("source", "csv")
	v.SetDefault("data_root", "data")
	v.SetDefault("instruments", []string{})
	v.SetDefault("buy_rule_file", "")
	v.SetDefault("sell_rule_file", "")
	v.SetDefault("clickhouse_dsn", "")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("session_start", 0)
	v.SetDefault("session_end", 0)
	v.SetDefault("drop_duplicates", false)
	v.SetDefault("bybit.category", "spot")
	v.SetDefault("bybit.interval", "1")
	v.SetDefault("bybit.start", "")
	v.SetDefault("bybit.end", "")
	v.SetDefault("bybit.demo", false)
	v.SetDefault("output_dir", "results")
	v.SetDefault("output_formats", []string{"console"})
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_dir", "")
	v.SetDefault("log_level", "info")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
