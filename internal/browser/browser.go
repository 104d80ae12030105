package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrTimeout is returned when a bounded wait expires before its condition holds.
var ErrTimeout = errors.New("browser: wait timed out")

// Options configures the Chrome instance behind a Browser.
type Options struct {
	Headless   bool
	ExecPath   string
	UserAgent  string
	Width      int
	Height     int
	NavTimeout time.Duration
}

// Browser owns one Chrome process and the single tab every run drives.
type Browser struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	navTimeout  time.Duration
}

// New starts Chrome. The process is launched eagerly so a missing executable
// is reported here rather than on the first navigation.
func New(opts Options) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-notifications", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Width > 0 && opts.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	navTimeout := opts.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}

	return &Browser{
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      browserCancel,
		navTimeout:  navTimeout,
	}, nil
}

// Tab returns the browsing context shared by authentication and harvesting.
func (b *Browser) Tab() *Tab {
	return &Tab{ctx: b.ctx, navTimeout: b.navTimeout}
}

// Close shuts the tab and the Chrome process down.
func (b *Browser) Close() {
	b.cancel()
	b.allocCancel()
}

// Tab is one chromedp target. Every method takes the caller's context for
// cancellation; the chromedp connection itself comes from the tab.
type Tab struct {
	ctx        context.Context
	navTimeout time.Duration
}

func (t *Tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	if timeout > 0 {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(runCtx, timeout)
		defer timeoutCancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return ErrTimeout
	}
	return err
}

// Navigate loads url and waits for the load event.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	if err := t.run(ctx, t.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Reload reloads the current document.
func (t *Tab) Reload(ctx context.Context) error {
	if err := t.run(ctx, t.navTimeout, chromedp.Reload()); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// WaitReady blocks until document.readyState is "complete" or timeout passes.
func (t *Tab) WaitReady(ctx context.Context, timeout time.Duration) error {
	var complete bool
	err := t.run(ctx, 0, chromedp.Poll(`document.readyState === "complete"`, &complete,
		chromedp.WithPollingTimeout(timeout),
		chromedp.WithPollingInterval(100*time.Millisecond),
	))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return ErrTimeout
	}
	return err
}

// Location reports the URL the tab is currently on.
func (t *Tab) Location(ctx context.Context) (string, error) {
	var loc string
	if err := t.run(ctx, 0, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return loc, nil
}

// WaitPresent waits up to timeout for selector to match a node in the DOM.
func (t *Tab) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	return t.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// SendKeys types text into the first node matching selector.
func (t *Tab) SendKeys(ctx context.Context, selector, text string) error {
	return t.run(ctx, 0, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// Click clicks the first node matching selector.
func (t *Tab) Click(ctx context.Context, selector string) error {
	return t.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery))
}

// ScrollIntoView scrolls the first node matching selector into the viewport.
func (t *Tab) ScrollIntoView(ctx context.Context, selector string) error {
	return t.run(ctx, 0, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
}

// ScrollTo scrolls the window to fraction (0..1) of the document height.
func (t *Tab) ScrollTo(ctx context.Context, fraction float64) error {
	script := fmt.Sprintf(`window.scrollTo(0, document.body.scrollHeight * %g)`, fraction)
	return t.run(ctx, 0, chromedp.Evaluate(script, nil))
}

// Enabled reports whether selector matches a node that is not disabled.
func (t *Tab) Enabled(ctx context.Context, selector string) (bool, error) {
	script, err := enabledScript(selector)
	if err != nil {
		return false, err
	}

	var enabled bool
	if err := t.run(ctx, 0, chromedp.Evaluate(script, &enabled)); err != nil {
		return false, err
	}
	return enabled, nil
}

func enabledScript(selector string) (string, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return !!el && !el.disabled && el.getAttribute("aria-disabled") !== "true";
	})()`, quoted), nil
}

// Query evaluates a JavaScript expression and decodes its JSON value into res.
func (t *Tab) Query(ctx context.Context, expression string, res any) error {
	return t.run(ctx, 0, chromedp.Evaluate(expression, res))
}

// HTML returns the serialized document.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	var pageHTML string
	if err := t.run(ctx, 0, chromedp.OuterHTML("html", &pageHTML, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page html: %w", err)
	}
	return pageHTML, nil
}

// Cookies returns every cookie the browser holds for the current page.
func (t *Tab) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := t.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = make([]Cookie, 0, len(raw))
		for _, c := range raw {
			cookies = append(cookies, fromNetwork(c))
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("reading cookies: %w", err)
	}
	return cookies, nil
}

// SetCookie injects one cookie into the browser. A cookie cached without a
// domain is set for the page the tab is on.
func (t *Tab) SetCookie(ctx context.Context, c Cookie) error {
	return t.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		var pageURL string
		if c.Domain == "" {
			if err := chromedp.Location(&pageURL).Do(ctx); err != nil {
				return err
			}
		}
		return c.params(pageURL).Do(ctx)
	}))
}
