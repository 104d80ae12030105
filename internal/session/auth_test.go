package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/go-scripts/profileharvest/internal/browser"
	"github.com/go-scripts/profileharvest/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockBrowser struct {
	mock.Mock
}

func (m *mockBrowser) Navigate(ctx context.Context, url string) error {
	return m.Called(url).Error(0)
}

func (m *mockBrowser) Reload(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockBrowser) WaitReady(ctx context.Context, timeout time.Duration) error {
	return m.Called(timeout).Error(0)
}

func (m *mockBrowser) Location(ctx context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockBrowser) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	return m.Called(selector, timeout).Error(0)
}

func (m *mockBrowser) SendKeys(ctx context.Context, selector, text string) error {
	return m.Called(selector, text).Error(0)
}

func (m *mockBrowser) Click(ctx context.Context, selector string) error {
	return m.Called(selector).Error(0)
}

func (m *mockBrowser) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	args := m.Called()
	cookies, _ := args.Get(0).([]browser.Cookie)
	return cookies, args.Error(1)
}

func (m *mockBrowser) SetCookie(ctx context.Context, c browser.Cookie) error {
	return m.Called(c.Name).Error(0)
}

var testCreds = config.Credentials{Identity: "ada@example.com", Passphrase: "s3cret"}

func testSettings() Settings {
	return Settings{
		BaseURL:                "https://www.linkedin.com",
		LoginPath:              "/login",
		AuthenticatedFragments: []string{"feed", "mynetwork", "messaging", "notifications"},
		IdentitySelector:       "#username",
		PassphraseSelector:     "#password",
		SubmitSelector:         "button[type='submit']",
		WaitTimeout:            10 * time.Second,
		AfterRoot:              5 * time.Second,
		AfterReload:            3 * time.Second,
		AfterLoginPage:         2 * time.Second,
		AfterSubmit:            5 * time.Second,
	}
}

func newTestAuthenticator(t *testing.T, b Browser, store Store, opts ...Option) *Authenticator {
	t.Helper()
	logger := log.NewWithOptions(&bytes.Buffer{}, log.Options{Level: log.DebugLevel})
	opts = append([]Option{WithPacer(browser.Instant()), WithLogger(logger)}, opts...)
	a, err := NewAuthenticator(b, testCreds, store, testSettings(), opts...)
	require.NoError(t, err)
	return a
}

func seededCache(t *testing.T, cookies ...browser.Cookie) *Cache {
	t.Helper()
	cache := NewCache(filepath.Join(t.TempDir(), "cookies", "linkedin_cookies.json"))
	if len(cookies) > 0 {
		require.NoError(t, cache.Save(cookies))
	}
	return cache
}

func expectInteractiveLogin(b *mockBrowser) {
	b.On("Navigate", "https://www.linkedin.com/login").Return(nil).Once()
	b.On("WaitPresent", "#username", mock.Anything).Return(nil)
	b.On("WaitPresent", "#password", mock.Anything).Return(nil)
	b.On("SendKeys", "#username", "ada@example.com").Return(nil).Once()
	b.On("SendKeys", "#password", "s3cret").Return(nil).Once()
	b.On("WaitPresent", "button[type='submit']", mock.Anything).Return(nil)
	b.On("Click", "button[type='submit']").Return(nil).Once()
}

func TestNewAuthenticatorRequiresCredentials(t *testing.T) {
	b := &mockBrowser{}
	tests := []struct {
		name  string
		creds config.Credentials
	}{
		{name: "both missing", creds: config.Credentials{}},
		{name: "missing passphrase", creds: config.Credentials{Identity: "ada@example.com"}},
		{name: "blank identity", creds: config.Credentials{Identity: "  ", Passphrase: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthenticator(b, tt.creds, NewCache(filepath.Join(t.TempDir(), "c.json")), testSettings())
			assert.ErrorIs(t, err, config.ErrMissingCredentials)
		})
	}
	b.AssertNotCalled(t, "Navigate", mock.Anything)
}

func TestAuthenticateRestoresSession(t *testing.T) {
	expiry := 1790000000.5
	cache := seededCache(t,
		browser.Cookie{Name: "li_at", Value: "a", Domain: ".linkedin.com", Expiry: &expiry},
		browser.Cookie{Name: "broken", Value: "b"},
		browser.Cookie{Name: "JSESSIONID", Value: "c", Domain: ".linkedin.com"},
	)

	b := &mockBrowser{}
	b.On("Navigate", "https://www.linkedin.com").Return(nil).Once()
	b.On("WaitReady", 10*time.Second).Return(nil)
	b.On("SetCookie", "li_at").Return(nil).Once()
	b.On("SetCookie", "broken").Return(errors.New("invalid cookie domain")).Once()
	b.On("SetCookie", "JSESSIONID").Return(nil).Once()
	b.On("Reload").Return(nil).Once()
	b.On("Location").Return("https://www.linkedin.com/feed/", nil)

	a := newTestAuthenticator(t, b, cache)
	out := a.Authenticate(context.Background())

	assert.True(t, out.Authenticated)
	assert.Equal(t, MethodRestored, out.Method)
	assert.NoError(t, out.Reason)
	b.AssertExpectations(t)
	b.AssertNotCalled(t, "Navigate", "https://www.linkedin.com/login")
	b.AssertNotCalled(t, "SendKeys", mock.Anything, mock.Anything)
	b.AssertNotCalled(t, "Cookies")
	assert.True(t, a.Check(context.Background()))
}

func TestAuthenticateFallsBackToLogin(t *testing.T) {
	cache := seededCache(t, browser.Cookie{Name: "li_at", Value: "stale", Domain: ".linkedin.com"})

	b := &mockBrowser{}
	b.On("Navigate", "https://www.linkedin.com").Return(nil).Once()
	b.On("WaitReady", mock.Anything).Return(nil)
	b.On("SetCookie", "li_at").Return(nil).Once()
	b.On("Reload").Return(nil).Once()
	b.On("Location").Return("https://www.linkedin.com/authwall?trk=x", nil).Once()
	expectInteractiveLogin(b)
	b.On("Location").Return("https://www.linkedin.com/feed/?trk=login", nil).Once()
	fresh := []browser.Cookie{{Name: "li_at", Value: "fresh", Domain: ".linkedin.com"}, {Name: "lang", Value: "en"}}
	b.On("Cookies").Return(fresh, nil).Once()

	out := newTestAuthenticator(t, b, cache).Authenticate(context.Background())

	require.True(t, out.Authenticated)
	assert.Equal(t, MethodInteractive, out.Method)
	b.AssertExpectations(t)

	saved, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, fresh, saved)
}

func TestAuthenticateRestoreFailureFallsBackToLogin(t *testing.T) {
	stale := browser.Cookie{Name: "li_at", Value: "stale", Domain: ".linkedin.com"}
	tests := []struct {
		name  string
		cache func(t *testing.T) *Cache
		setup func(b *mockBrowser)
	}{
		{
			name:  "page times out after reload",
			cache: func(t *testing.T) *Cache { return seededCache(t, stale) },
			setup: func(b *mockBrowser) {
				b.On("Navigate", "https://www.linkedin.com").Return(nil).Once()
				b.On("WaitReady", mock.Anything).Return(nil).Once()
				b.On("SetCookie", "li_at").Return(nil).Once()
				b.On("Reload").Return(nil).Once()
				b.On("WaitReady", mock.Anything).Return(browser.ErrTimeout).Once()
			},
		},
		{
			name: "corrupt cookie file",
			cache: func(t *testing.T) *Cache {
				cache := seededCache(t)
				require.NoError(t, os.MkdirAll(filepath.Dir(cache.Path()), 0o755))
				require.NoError(t, os.WriteFile(cache.Path(), []byte(`[{"name":`), 0o600))
				return cache
			},
			setup: func(b *mockBrowser) {},
		},
		{
			name:  "root page unreachable",
			cache: func(t *testing.T) *Cache { return seededCache(t, stale) },
			setup: func(b *mockBrowser) {
				b.On("Navigate", "https://www.linkedin.com").Return(errors.New("net::ERR_NAME_NOT_RESOLVED")).Once()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := tt.cache(t)
			b := &mockBrowser{}
			tt.setup(b)
			expectInteractiveLogin(b)
			b.On("WaitReady", mock.Anything).Return(nil)
			b.On("Location").Return("https://www.linkedin.com/feed/", nil)
			fresh := []browser.Cookie{{Name: "li_at", Value: "fresh", Domain: ".linkedin.com"}}
			b.On("Cookies").Return(fresh, nil).Once()

			out := newTestAuthenticator(t, b, cache).Authenticate(context.Background())

			require.True(t, out.Authenticated)
			assert.Equal(t, MethodInteractive, out.Method)
			assert.NoError(t, out.Reason)
			b.AssertExpectations(t)

			saved, err := cache.Load()
			require.NoError(t, err)
			assert.Equal(t, fresh, saved)
		})
	}
}

func TestAuthenticateWithoutCacheLogsIn(t *testing.T) {
	cache := seededCache(t)

	b := &mockBrowser{}
	expectInteractiveLogin(b)
	b.On("WaitReady", mock.Anything).Return(nil)
	b.On("Location").Return("https://www.linkedin.com/mynetwork/", nil)
	b.On("Cookies").Return([]browser.Cookie{{Name: "li_at", Value: "v"}}, nil)

	out := newTestAuthenticator(t, b, cache).Authenticate(context.Background())

	assert.True(t, out.Authenticated)
	assert.Equal(t, MethodInteractive, out.Method)
	b.AssertNotCalled(t, "Navigate", "https://www.linkedin.com")
	b.AssertNotCalled(t, "SetCookie", mock.Anything)
	assert.True(t, cache.Exists())
}

func TestAuthenticateSkipsRestoreWhenAsked(t *testing.T) {
	cache := seededCache(t, browser.Cookie{Name: "li_at", Value: "a"})

	b := &mockBrowser{}
	expectInteractiveLogin(b)
	b.On("WaitReady", mock.Anything).Return(nil)
	b.On("Location").Return("https://www.linkedin.com/feed/", nil)
	b.On("Cookies").Return([]browser.Cookie{{Name: "li_at", Value: "b"}}, nil)

	out := newTestAuthenticator(t, b, cache, WithoutRestore()).Authenticate(context.Background())

	assert.True(t, out.Authenticated)
	b.AssertNotCalled(t, "SetCookie", mock.Anything)
}

func TestAuthenticateRetriesMissingFormOnce(t *testing.T) {
	b := &mockBrowser{}
	b.On("Navigate", "https://www.linkedin.com/login").Return(nil).Once()
	b.On("WaitPresent", "#username", mock.Anything).Return(browser.ErrTimeout).Once()
	b.On("Reload").Return(nil).Once()
	b.On("WaitPresent", "#username", mock.Anything).Return(nil).Once()
	b.On("WaitPresent", "#password", mock.Anything).Return(nil).Once()
	b.On("SendKeys", mock.Anything, mock.Anything).Return(nil)
	b.On("WaitPresent", "button[type='submit']", mock.Anything).Return(nil)
	b.On("Click", mock.Anything).Return(nil)
	b.On("WaitReady", mock.Anything).Return(nil)
	b.On("Location").Return("https://www.linkedin.com/feed/", nil)
	b.On("Cookies").Return([]browser.Cookie{{Name: "li_at", Value: "v"}}, nil)

	out := newTestAuthenticator(t, b, seededCache(t)).Authenticate(context.Background())

	assert.True(t, out.Authenticated)
	b.AssertNumberOfCalls(t, "Reload", 1)
}

func TestAuthenticateFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *mockBrowser)
		want  error
	}{
		{
			name: "form never appears",
			setup: func(b *mockBrowser) {
				b.On("Navigate", mock.Anything).Return(nil)
				b.On("WaitPresent", "#username", mock.Anything).Return(browser.ErrTimeout)
				b.On("Reload").Return(nil)
			},
			want: browser.ErrTimeout,
		},
		{
			name: "page never finishes loading",
			setup: func(b *mockBrowser) {
				expectInteractiveLogin(b)
				b.On("WaitReady", mock.Anything).Return(browser.ErrTimeout)
			},
			want: browser.ErrTimeout,
		},
		{
			name: "lands on checkpoint",
			setup: func(b *mockBrowser) {
				expectInteractiveLogin(b)
				b.On("WaitReady", mock.Anything).Return(nil)
				b.On("Location").Return("https://www.linkedin.com/checkpoint/challenge", nil)
			},
			want: ErrNotAuthenticated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &mockBrowser{}
			tt.setup(b)
			cache := seededCache(t)

			out := newTestAuthenticator(t, b, cache).Authenticate(context.Background())

			assert.False(t, out.Authenticated)
			assert.Equal(t, MethodNone, out.Method)
			assert.ErrorIs(t, out.Reason, tt.want)
			assert.False(t, cache.Exists())
			b.AssertNotCalled(t, "Cookies")
		})
	}
}

func TestIsAuthenticatedURL(t *testing.T) {
	fragments := []string{"feed", "mynetwork", "messaging", "notifications"}
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.linkedin.com/feed/", true},
		{"https://www.linkedin.com/mynetwork/invite-connect/", true},
		{"https://www.linkedin.com/messaging/thread/1", true},
		{"https://www.linkedin.com/notifications/", true},
		{"https://www.linkedin.com/login", false},
		{"https://www.linkedin.com/", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthenticatedURL(tt.url, fragments))
		})
	}
	assert.False(t, IsAuthenticatedURL("https://www.linkedin.com/feed/", []string{""}))
}
