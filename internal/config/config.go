package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting of a harvesting run.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Browser BrowserConfig `mapstructure:"browser"`
	Harvest HarvestConfig `mapstructure:"harvest"`
	Layout  LayoutConfig  `mapstructure:"layout"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Logger  LoggerConfig  `mapstructure:"logger"`
}

// SiteConfig describes the target site and how authentication is detected.
type SiteConfig struct {
	Name                    string   `mapstructure:"name"`
	BaseURL                 string   `mapstructure:"base_url"`
	LoginPath               string   `mapstructure:"login_path"`
	SearchPath              string   `mapstructure:"search_path"`
	AuthenticatedFragments  []string `mapstructure:"authenticated_fragments"`
	IdentitySelector        string   `mapstructure:"identity_selector"`
	PassphraseSelector      string   `mapstructure:"passphrase_selector"`
	SubmitSelector          string   `mapstructure:"submit_selector"`
	PlaceholderLinkFragment string   `mapstructure:"placeholder_link_fragment"`
}

// BrowserConfig configures Chrome and the bounded waits performed in it.
type BrowserConfig struct {
	Headless     bool          `mapstructure:"headless"`
	ExecPath     string        `mapstructure:"exec_path"`
	UserAgent    string        `mapstructure:"user_agent"`
	Width        int           `mapstructure:"width"`
	Height       int           `mapstructure:"height"`
	NavTimeout   time.Duration `mapstructure:"nav_timeout"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// HarvestConfig configures pagination and the settle policy.
type HarvestConfig struct {
	PageSize     int          `mapstructure:"page_size"`
	DedupeByLink bool         `mapstructure:"dedupe_by_link"`
	Settle       SettleConfig `mapstructure:"settle"`
	Delays       DelayConfig  `mapstructure:"delays"`
}

// SettleConfig scales every delay in DelayConfig.
type SettleConfig struct {
	Scale float64       `mapstructure:"scale"`
	Min   time.Duration `mapstructure:"min"`
	Max   time.Duration `mapstructure:"max"`
}

// DelayConfig lists the nominal settle delays.
type DelayConfig struct {
	AfterRoot      time.Duration `mapstructure:"after_root"`
	AfterReload    time.Duration `mapstructure:"after_reload"`
	AfterLoginPage time.Duration `mapstructure:"after_login_page"`
	AfterSubmit    time.Duration `mapstructure:"after_submit"`
	Search         time.Duration `mapstructure:"search"`
	HalfScroll     time.Duration `mapstructure:"half_scroll"`
	FullScroll     time.Duration `mapstructure:"full_scroll"`
	Rows           time.Duration `mapstructure:"rows"`
	BottomScroll   time.Duration `mapstructure:"bottom_scroll"`
	ScrollIntoView time.Duration `mapstructure:"scroll_into_view"`
	AfterNext      time.Duration `mapstructure:"after_next"`
	BetweenPages   time.Duration `mapstructure:"between_pages"`
}

// LayoutConfig holds the CSS selectors that address result rows and fields.
type LayoutConfig struct {
	ResultsContainer string   `mapstructure:"results_container"`
	Row              string   `mapstructure:"row"`
	Name             string   `mapstructure:"name"`
	Title            string   `mapstructure:"title"`
	Location         string   `mapstructure:"location"`
	Summary          string   `mapstructure:"summary"`
	Connections      string   `mapstructure:"connections"`
	Link             string   `mapstructure:"link"`
	NextPage         []string `mapstructure:"next_page"`
}

// PathsConfig locates the files a run reads and writes.
type PathsConfig struct {
	CookiesDir string `mapstructure:"cookies_dir"`
	ExportsDir string `mapstructure:"exports_dir"`
	EnvFile    string `mapstructure:"env_file"`
	Database   string `mapstructure:"database"`
}

// LoggerConfig configures the charmbracelet logger.
type LoggerConfig struct {
	Level           string `mapstructure:"level"`
	ReportTimestamp bool   `mapstructure:"report_timestamp"`
}

// CookieFile is the session cache path, cookies/<site>_cookies.json by default.
func (c *Config) CookieFile() string {
	return filepath.Join(c.Paths.CookiesDir, c.Site.Name+"_cookies.json")
}

// Validate rejects settings the harvester cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Site.BaseURL == "" {
		errs = append(errs, errors.New("site.base_url is required"))
	}
	if len(c.Site.AuthenticatedFragments) == 0 {
		errs = append(errs, errors.New("site.authenticated_fragments must not be empty"))
	}
	if c.Harvest.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("harvest.page_size must be positive, got %d", c.Harvest.PageSize))
	}
	if c.Harvest.Settle.Scale < 0 {
		errs = append(errs, fmt.Errorf("harvest.settle.scale must not be negative, got %g", c.Harvest.Settle.Scale))
	}
	if c.Layout.Row == "" {
		errs = append(errs, errors.New("layout.row is required"))
	}
	return errors.Join(errs...)
}

// Load reads path (when it exists), layers HARVEST_* environment variables on
// top and fills the rest from defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("site.name", "linkedin")
	v.SetDefault("site.base_url", "https://www.linkedin.com")
	v.SetDefault("site.login_path", "/login")
	v.SetDefault("site.search_path", "/search/results/people/")
	v.SetDefault("site.authenticated_fragments", []string{"feed", "mynetwork", "messaging", "notifications"})
	v.SetDefault("site.identity_selector", "#username")
	v.SetDefault("site.passphrase_selector", "#password")
	v.SetDefault("site.submit_selector", "button[type='submit']")
	v.SetDefault("site.placeholder_link_fragment", "headless?origin=OTHER&keywords=")

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.width", 1366)
	v.SetDefault("browser.height", 900)
	v.SetDefault("browser.nav_timeout", "60s")
	v.SetDefault("browser.wait_timeout", "10s")
	v.SetDefault("browser.probe_timeout", "5s")

	v.SetDefault("harvest.page_size", 10)
	v.SetDefault("harvest.dedupe_by_link", false)
	v.SetDefault("harvest.settle.scale", 1.0)
	v.SetDefault("harvest.settle.min", "0s")
	v.SetDefault("harvest.settle.max", "0s")
	v.SetDefault("harvest.delays.after_root", "5s")
	v.SetDefault("harvest.delays.after_reload", "3s")
	v.SetDefault("harvest.delays.after_login_page", "2s")
	v.SetDefault("harvest.delays.after_submit", "5s")
	v.SetDefault("harvest.delays.search", "5s")
	v.SetDefault("harvest.delays.half_scroll", "2s")
	v.SetDefault("harvest.delays.full_scroll", "3s")
	v.SetDefault("harvest.delays.rows", "2s")
	v.SetDefault("harvest.delays.bottom_scroll", "2s")
	v.SetDefault("harvest.delays.scroll_into_view", "1s")
	v.SetDefault("harvest.delays.after_next", "3s")
	v.SetDefault("harvest.delays.between_pages", "3s")

	v.SetDefault("layout.results_container", "div.search-results-container")
	v.SetDefault("layout.row", "div.search-results-container ul > li")
	v.SetDefault("layout.name", "span.entity-result__title-text a span[aria-hidden='true']")
	v.SetDefault("layout.title", "div.entity-result__primary-subtitle")
	v.SetDefault("layout.location", "div.entity-result__secondary-subtitle")
	v.SetDefault("layout.summary", "p.entity-result__summary")
	v.SetDefault("layout.connections", "div.entity-result__insights span")
	v.SetDefault("layout.link", "span.entity-result__title-text a")
	v.SetDefault("layout.next_page", []string{
		"button[aria-label='Next']",
		"button.artdeco-pagination__button--next",
	})

	v.SetDefault("paths.cookies_dir", "cookies")
	v.SetDefault("paths.exports_dir", "exports")
	v.SetDefault("paths.env_file", ".env")
	v.SetDefault("paths.database", "exports/profiles.db")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.report_timestamp", true)
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
