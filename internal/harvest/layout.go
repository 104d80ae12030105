package harvest

import (
	"net/url"
	"strings"

	"github.com/go-scripts/profileharvest/internal/config"
)

// Layout addresses result rows and their fields with CSS selectors. Field
// selectors are relative to the row.
type Layout struct {
	ResultsContainer string
	Row              string
	Name             string
	Title            string
	Location         string
	Summary          string
	Connections      string
	Link             string
	NextPage         []string

	// PlaceholderLink marks anonymised profile links that must not be
	// surfaced as real links.
	PlaceholderLink string
}

// LayoutFromConfig builds a Layout from the run configuration.
func LayoutFromConfig(cfg *config.Config) Layout {
	return Layout{
		ResultsContainer: cfg.Layout.ResultsContainer,
		Row:              cfg.Layout.Row,
		Name:             cfg.Layout.Name,
		Title:            cfg.Layout.Title,
		Location:         cfg.Layout.Location,
		Summary:          cfg.Layout.Summary,
		Connections:      cfg.Layout.Connections,
		Link:             cfg.Layout.Link,
		NextPage:         cfg.Layout.NextPage,
		PlaceholderLink:  cfg.Site.PlaceholderLinkFragment,
	}
}

// Selector returns the row-relative selector for kind.
func (l Layout) Selector(kind FieldKind) string {
	switch kind {
	case FieldName:
		return l.Name
	case FieldTitle:
		return l.Title
	case FieldLocation:
		return l.Location
	case FieldSummary:
		return l.Summary
	case FieldConnections:
		return l.Connections
	case FieldLink:
		return l.Link
	default:
		return ""
	}
}

// Clean normalises a raw field value: blank text and placeholder links
// become Unavailable.
func (l Layout) Clean(kind FieldKind, raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Unavailable
	}
	if kind == FieldLink && l.PlaceholderLink != "" && strings.Contains(v, l.PlaceholderLink) {
		return Unavailable
	}
	return v
}

// SearchURL builds the people-search URL for term.
func SearchURL(baseURL, searchPath, term string) string {
	q := url.Values{}
	q.Set("keywords", term)
	return strings.TrimRight(baseURL, "/") + searchPath + "?" + q.Encode()
}
