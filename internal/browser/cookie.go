package browser

import (
	"math"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

// Cookie is one session token in the shape the cookie cache file stores it.
// Expiry is epoch seconds; files written by other tools may carry it as a float.
type Cookie struct {
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Domain   string   `json:"domain,omitempty"`
	Path     string   `json:"path,omitempty"`
	Expiry   *float64 `json:"expiry,omitempty"`
	Secure   bool     `json:"secure,omitempty"`
	HTTPOnly bool     `json:"httpOnly,omitempty"`
	SameSite string   `json:"sameSite,omitempty"`
}

// ExpiresAt returns the expiry truncated to whole seconds, or false for a
// session cookie.
func (c Cookie) ExpiresAt() (time.Time, bool) {
	if c.Expiry == nil || *c.Expiry <= 0 || math.IsNaN(*c.Expiry) {
		return time.Time{}, false
	}
	return time.Unix(int64(*c.Expiry), 0), true
}

// params builds the CDP call. A cookie without a domain is scoped to pageURL.
func (c Cookie) params(pageURL string) *network.SetCookieParams {
	p := network.SetCookie(c.Name, c.Value).
		WithSecure(c.Secure).
		WithHTTPOnly(c.HTTPOnly)
	switch {
	case c.Domain != "":
		p = p.WithDomain(c.Domain)
	case pageURL != "":
		p = p.WithURL(pageURL)
	}
	if c.Path != "" {
		p = p.WithPath(c.Path)
	}
	if at, ok := c.ExpiresAt(); ok {
		expires := cdp.TimeSinceEpoch(at)
		p = p.WithExpires(&expires)
	}
	switch network.CookieSameSite(c.SameSite) {
	case network.CookieSameSiteStrict, network.CookieSameSiteLax, network.CookieSameSiteNone:
		p = p.WithSameSite(network.CookieSameSite(c.SameSite))
	}
	return p
}

func fromNetwork(c *network.Cookie) Cookie {
	out := Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: string(c.SameSite),
	}
	if !c.Session && c.Expires > 0 {
		expiry := math.Trunc(c.Expires)
		out.Expiry = &expiry
	}
	return out
}
