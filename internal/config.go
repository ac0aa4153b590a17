package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	StoreCSV    = "csv"
	StoreSQLite = "sqlite"

	RatesStatic = "static"
	RatesECB    = "ecb"
)

// RatesConfig selects and tunes the exchange rate source
type RatesConfig struct {
	// Source is "ecb" (live reference rates) or "static" (Table below)
	Source string `yaml:"source,omitempty"`

	// Base and Table define a static table: units of each currency per one unit of Base
	Base  CurrencyCode                     `yaml:"base,omitempty"`
	Table map[CurrencyCode]decimal.Decimal `yaml:"table,omitempty"`

	URL      string        `yaml:"url,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
}

// BudgetConfig is the process-wide configuration. It is loaded once, handed
// to the ledger explicitly and only ever saved as a whole.
type BudgetConfig struct {
	BudgetAmount    decimal.Decimal `yaml:"budget"`
	BudgetCurrency  CurrencyCode    `yaml:"budget_currency"`
	DisplayCurrency CurrencyCode    `yaml:"display_currency"`

	// DataFile is the backing store path; relative paths resolve against the config directory
	DataFile string `yaml:"data_file,omitempty"`

	// Store is "csv" (default) or "sqlite"
	Store string `yaml:"store,omitempty"`

	Rates RatesConfig `yaml:"rates,omitempty"`

	// path the config was loaded from (not serialized)
	path string `yaml:"-"`
}

// DefaultStaticRates is a fallback EUR table for offline use
var DefaultStaticRates = map[CurrencyCode]decimal.Decimal{
	USD: decimal.RequireFromString("1.08"),
	GBP: decimal.RequireFromString("0.85"),
	RON: decimal.RequireFromString("4.97"),
}

// DefaultConfigDir returns ~/.subscriptionkit
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".subscriptionkit"
	}
	return filepath.Join(home, ".subscriptionkit")
}

// DefaultConfigPath returns the default config file path (~/.subscriptionkit/config.yaml)
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultBudgetConfig is used when no config file exists
func DefaultBudgetConfig() *BudgetConfig {
	cfg := &BudgetConfig{
		BudgetAmount:    decimal.Zero,
		BudgetCurrency:  EUR,
		DisplayCurrency: EUR,
	}
	cfg.applyDefaults()
	return cfg
}

func (c *BudgetConfig) applyDefaults() {
	if c.BudgetCurrency == "" {
		c.BudgetCurrency = EUR
	}
	if c.DisplayCurrency == "" {
		c.DisplayCurrency = c.BudgetCurrency
	}
	if c.Store == "" {
		c.Store = StoreCSV
	}
	if c.DataFile == "" {
		if c.Store == StoreSQLite {
			c.DataFile = "subscriptions.db"
		} else {
			c.DataFile = "subscriptions.csv"
		}
	}
	if c.Rates.Source == "" {
		c.Rates.Source = RatesStatic
	}
	if c.Rates.Base == "" {
		c.Rates.Base = EUR
	}
	if len(c.Rates.Table) == 0 {
		c.Rates.Table = make(map[CurrencyCode]decimal.Decimal, len(DefaultStaticRates))
		for k, v := range DefaultStaticRates {
			c.Rates.Table[k] = v
		}
	}
	if c.Rates.Timeout == 0 {
		c.Rates.Timeout = 5 * time.Second
	}
	if c.Rates.CacheTTL == 0 {
		c.Rates.CacheTTL = time.Hour
	}
}

// LoadBudgetConfig reads the config at path. A missing file yields the
// defaults; an unreadable or invalid one yields a ConfigError.
func LoadBudgetConfig(path string) (*BudgetConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := DefaultBudgetConfig()
		cfg.path = path
		return cfg, nil
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("reading config file: %w", err)}
	}

	var cfg BudgetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("parsing config file: %w", err)}
	}
	cfg.path = path
	cfg.normalizeCodes()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *BudgetConfig) normalizeCodes() {
	c.BudgetCurrency = CurrencyCode(strings.ToUpper(string(c.BudgetCurrency)))
	c.DisplayCurrency = CurrencyCode(strings.ToUpper(string(c.DisplayCurrency)))
	c.Rates.Base = CurrencyCode(strings.ToUpper(string(c.Rates.Base)))
	c.Store = strings.ToLower(c.Store)
	c.Rates.Source = strings.ToLower(c.Rates.Source)
}

// Validate checks that every value is usable
func (c *BudgetConfig) Validate() error {
	if c.BudgetAmount.IsNegative() {
		return &ConfigError{Path: c.path, Err: fmt.Errorf("budget must not be negative, got %s", c.BudgetAmount)}
	}
	if !c.BudgetCurrency.Supported() {
		return &ConfigError{Path: c.path, Err: fmt.Errorf("unsupported budget_currency %q", c.BudgetCurrency)}
	}
	if !c.DisplayCurrency.Supported() {
		return &ConfigError{Path: c.path, Err: fmt.Errorf("unsupported display_currency %q", c.DisplayCurrency)}
	}
	switch c.Store {
	case StoreCSV, StoreSQLite:
	default:
		return &ConfigError{Path: c.path, Err: fmt.Errorf("unknown store %q (available: %s, %s)", c.Store, StoreCSV, StoreSQLite)}
	}
	switch c.Rates.Source {
	case RatesStatic, RatesECB:
	default:
		return &ConfigError{Path: c.path, Err: fmt.Errorf("unknown rates source %q (available: %s, %s)", c.Rates.Source, RatesStatic, RatesECB)}
	}
	for code, r := range c.Rates.Table {
		if !r.IsPositive() {
			return &ConfigError{Path: c.path, Err: fmt.Errorf("rate for %s must be positive, got %s", code, r)}
		}
	}
	return nil
}

// ApplyEnv overrides values from environment variables (BUDGET, BUDGET_CURRENCY,
// DEFAULT_CURRENCY, SUBSCRIPTIONKIT_DATA_FILE). lookup is usually os.LookupEnv.
func (c *BudgetConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("BUDGET"); ok && v != "" {
		amount, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return &ConfigError{Err: fmt.Errorf("invalid BUDGET %q: %w", v, err)}
		}
		c.BudgetAmount = amount
	}
	if v, ok := lookup("BUDGET_CURRENCY"); ok && v != "" {
		c.BudgetCurrency = CurrencyCode(strings.ToUpper(strings.TrimSpace(v)))
	}
	if v, ok := lookup("DEFAULT_CURRENCY"); ok && v != "" {
		c.DisplayCurrency = CurrencyCode(strings.ToUpper(strings.TrimSpace(v)))
	}
	if v, ok := lookup("SUBSCRIPTIONKIT_DATA_FILE"); ok && v != "" {
		c.DataFile = v
	}
	return c.Validate()
}

// Budget returns the configured budget ceiling
func (c *BudgetConfig) Budget() Budget {
	return Budget{Amount: c.BudgetAmount, Currency: c.BudgetCurrency}
}

// Path returns the file the config was loaded from, if any
func (c *BudgetConfig) Path() string {
	return c.path
}

// DataPath resolves DataFile: "~/" expands to the home directory and relative
// paths are taken from the config file's directory.
func (c *BudgetConfig) DataPath() string {
	p := c.DataFile
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	base := DefaultConfigDir()
	if c.path != "" {
		base = filepath.Dir(c.path)
	}
	return filepath.Join(base, p)
}

// Save writes the whole config to path atomically (temp file + rename)
func (c *BudgetConfig) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return &ConfigError{Path: path, Err: fmt.Errorf("marshaling config: %w", err)}
	}

	// Create parent directories if they don't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &ConfigError{Path: path, Err: fmt.Errorf("creating directory %s: %w", dir, err)}
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return &ConfigError{Path: path, Err: fmt.Errorf("creating temp file: %w", err)}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &ConfigError{Path: path, Err: fmt.Errorf("writing config file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &ConfigError{Path: path, Err: fmt.Errorf("writing config file: %w", err)}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &ConfigError{Path: path, Err: fmt.Errorf("replacing config file: %w", err)}
	}

	c.path = path
	return nil
}
