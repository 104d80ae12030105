package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/go-scripts/profileharvest/internal/browser"
	"github.com/go-scripts/profileharvest/internal/config"
)

// ErrNotAuthenticated means the browser did not land in the authenticated area.
var ErrNotAuthenticated = errors.New("not in the authenticated area")

// Browser is the slice of the browsing context authentication needs.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	WaitReady(ctx context.Context, timeout time.Duration) error
	Location(ctx context.Context) (string, error)
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	SendKeys(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Cookies(ctx context.Context) ([]browser.Cookie, error)
	SetCookie(ctx context.Context, c browser.Cookie) error
}

// Store persists the session tokens between runs.
type Store interface {
	Load() ([]browser.Cookie, error)
	Save(cookies []browser.Cookie) error
}

// Method records how a session was established.
type Method int

const (
	MethodNone Method = iota
	MethodRestored
	MethodInteractive
)

func (m Method) String() string {
	switch m {
	case MethodRestored:
		return "restored"
	case MethodInteractive:
		return "interactive"
	default:
		return "none"
	}
}

// Outcome is the result of one Authenticate call. Reason is set only when
// Authenticated is false.
type Outcome struct {
	Authenticated bool
	Method        Method
	Reason        error
}

// Settings addresses the site's login flow.
type Settings struct {
	BaseURL                string
	LoginPath              string
	AuthenticatedFragments []string
	IdentitySelector       string
	PassphraseSelector     string
	SubmitSelector         string
	WaitTimeout            time.Duration

	AfterRoot      time.Duration
	AfterReload    time.Duration
	AfterLoginPage time.Duration
	AfterSubmit    time.Duration
}

// SettingsFromConfig maps the run configuration onto Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		BaseURL:                cfg.Site.BaseURL,
		LoginPath:              cfg.Site.LoginPath,
		AuthenticatedFragments: cfg.Site.AuthenticatedFragments,
		IdentitySelector:       cfg.Site.IdentitySelector,
		PassphraseSelector:     cfg.Site.PassphraseSelector,
		SubmitSelector:         cfg.Site.SubmitSelector,
		WaitTimeout:            cfg.Browser.WaitTimeout,
		AfterRoot:              cfg.Harvest.Delays.AfterRoot,
		AfterReload:            cfg.Harvest.Delays.AfterReload,
		AfterLoginPage:         cfg.Harvest.Delays.AfterLoginPage,
		AfterSubmit:            cfg.Harvest.Delays.AfterSubmit,
	}
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithPacer sets the settle policy.
func WithPacer(p *browser.Pacer) Option {
	return func(a *Authenticator) { a.pacer = p }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Authenticator) { a.logger = l.With("component", "auth") }
}

// WithoutRestore skips the cached session and always logs in interactively.
func WithoutRestore() Option {
	return func(a *Authenticator) { a.skipRestore = true }
}

// Authenticator establishes an authenticated browsing context, preferring a
// cached session over submitting credentials.
type Authenticator struct {
	browser     Browser
	creds       config.Credentials
	store       Store
	settings    Settings
	pacer       *browser.Pacer
	logger      *log.Logger
	skipRestore bool
}

// NewAuthenticator validates creds up front; missing credentials are a
// configuration error and nothing is navigated.
func NewAuthenticator(b Browser, creds config.Credentials, store Store, settings Settings, opts ...Option) (*Authenticator, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if settings.BaseURL == "" {
		return nil, errors.New("session: base URL is required")
	}

	a := &Authenticator{
		browser:  b,
		creds:    creds,
		store:    store,
		settings: settings,
		pacer:    browser.NewPacer(),
		logger:   log.Default().With("component", "auth"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate restores the cached session when it still works, otherwise
// submits the credentials. Failures are reported in the Outcome.
func (a *Authenticator) Authenticate(ctx context.Context) Outcome {
	if !a.skipRestore {
		err := a.restore(ctx)
		if err == nil {
			a.logger.Info("session restored from cookies")
			return Outcome{Authenticated: true, Method: MethodRestored}
		}
		a.logger.Info("cookie login failed, falling back to credentials", "reason", err)
	}

	if err := a.login(ctx); err != nil {
		a.logger.Error("login failed", "err", err)
		return Outcome{Method: MethodNone, Reason: err}
	}
	a.logger.Info("logged in with credentials")
	return Outcome{Authenticated: true, Method: MethodInteractive}
}

// Check reports whether the browser currently sits in the authenticated area.
func (a *Authenticator) Check(ctx context.Context) bool {
	loc, err := a.browser.Location(ctx)
	if err != nil {
		return false
	}
	return IsAuthenticatedURL(loc, a.settings.AuthenticatedFragments)
}

func (a *Authenticator) restore(ctx context.Context) error {
	cookies, err := a.store.Load()
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return errors.New("no cached cookies")
	}

	if err := a.browser.Navigate(ctx, a.settings.BaseURL); err != nil {
		return err
	}
	if err := a.browser.WaitReady(ctx, a.settings.WaitTimeout); err != nil {
		a.logger.Warn("home page not fully loaded before cookie injection", "err", err)
	}
	if err := a.pacer.Settle(ctx, a.settings.AfterRoot); err != nil {
		return err
	}

	injected := 0
	for _, c := range cookies {
		if err := a.browser.SetCookie(ctx, c); err != nil {
			a.logger.Warn("error adding cookie", "name", c.Name, "domain", c.Domain, "err", err)
			continue
		}
		injected++
	}
	a.logger.Debug("cookies injected", "injected", injected, "cached", len(cookies))

	if err := a.browser.Reload(ctx); err != nil {
		return err
	}
	if err := a.pacer.Settle(ctx, a.settings.AfterReload); err != nil {
		return err
	}
	if err := a.browser.WaitReady(ctx, a.settings.WaitTimeout); err != nil {
		return fmt.Errorf("page failed to load after refresh: %w", err)
	}
	return a.verify(ctx)
}

func (a *Authenticator) login(ctx context.Context) error {
	loginURL := strings.TrimRight(a.settings.BaseURL, "/") + a.settings.LoginPath
	if err := a.browser.Navigate(ctx, loginURL); err != nil {
		return err
	}
	if err := a.pacer.Settle(ctx, a.settings.AfterLoginPage); err != nil {
		return err
	}
	if err := a.locateForm(ctx); err != nil {
		return err
	}

	if err := a.browser.SendKeys(ctx, a.settings.IdentitySelector, a.creds.Identity); err != nil {
		return fmt.Errorf("typing identity: %w", err)
	}
	if err := a.browser.SendKeys(ctx, a.settings.PassphraseSelector, a.creds.Passphrase); err != nil {
		return fmt.Errorf("typing passphrase: %w", err)
	}
	if err := a.browser.WaitPresent(ctx, a.settings.SubmitSelector, a.settings.WaitTimeout); err != nil {
		return fmt.Errorf("login button not found: %w", err)
	}
	if err := a.browser.Click(ctx, a.settings.SubmitSelector); err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}
	if err := a.pacer.Settle(ctx, a.settings.AfterSubmit); err != nil {
		return err
	}
	if err := a.browser.WaitReady(ctx, a.settings.WaitTimeout); err != nil {
		return fmt.Errorf("page failed to load after login: %w", err)
	}
	if err := a.verify(ctx); err != nil {
		return err
	}

	a.saveCookies(ctx)
	return nil
}

// locateForm waits for both inputs, reloading the page once if either is
// missing.
func (a *Authenticator) locateForm(ctx context.Context) error {
	attempt := 0
	locate := func() error {
		if attempt > 0 {
			a.logger.Warn("login form elements not found, retrying after refresh")
			if err := a.browser.Reload(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		attempt++

		for _, sel := range []string{a.settings.IdentitySelector, a.settings.PassphraseSelector} {
			if err := a.browser.WaitPresent(ctx, sel, a.settings.WaitTimeout); err != nil {
				return fmt.Errorf("element %s not found: %w", sel, err)
			}
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(a.pacer.Duration(a.settings.AfterReload)), 1)
	return backoff.Retry(locate, backoff.WithContext(policy, ctx))
}

func (a *Authenticator) verify(ctx context.Context) error {
	loc, err := a.browser.Location(ctx)
	if err != nil {
		return err
	}
	if !IsAuthenticatedURL(loc, a.settings.AuthenticatedFragments) {
		return fmt.Errorf("%w: landed on %s", ErrNotAuthenticated, loc)
	}
	return nil
}

func (a *Authenticator) saveCookies(ctx context.Context) {
	cookies, err := a.browser.Cookies(ctx)
	if err != nil {
		a.logger.Warn("could not read cookies after login", "err", err)
		return
	}
	if err := a.store.Save(cookies); err != nil {
		a.logger.Warn("cookies not saved", "err", err)
		return
	}
	a.logger.Info("cookies saved", "count", len(cookies))
}

// IsAuthenticatedURL reports whether u contains any authenticated-area fragment.
func IsAuthenticatedURL(u string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(u, f) {
			return true
		}
	}
	return false
}
