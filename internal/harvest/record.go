package harvest

import "strings"

// Unavailable marks a field that could not be located on the page.
const Unavailable = "N/A"

// FieldKind identifies one of the six fields scraped from a result row.
type FieldKind int

const (
	FieldName FieldKind = iota
	FieldTitle
	FieldLocation
	FieldSummary
	FieldConnections
	FieldLink
)

// Fields lists every kind in extraction order.
var Fields = []FieldKind{FieldName, FieldTitle, FieldLocation, FieldSummary, FieldConnections, FieldLink}

// Columns are the export headers, in the order of Record.Values.
var Columns = []string{"Name", "Title", "Location", "Summary", "Connections", "Profile Link"}

func (k FieldKind) String() string {
	switch k {
	case FieldName:
		return "name"
	case FieldTitle:
		return "title"
	case FieldLocation:
		return "location"
	case FieldSummary:
		return "summary"
	case FieldConnections:
		return "connections"
	case FieldLink:
		return "link"
	default:
		return "unknown"
	}
}

// Record is one harvested profile summary.
type Record struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Summary     string `json:"summary"`
	Connections string `json:"connections"`
	ProfileLink string `json:"profile_link"`
}

// NewRecord returns a record with every field unavailable.
func NewRecord() Record {
	return Record{
		Name:        Unavailable,
		Title:       Unavailable,
		Location:    Unavailable,
		Summary:     Unavailable,
		Connections: Unavailable,
		ProfileLink: Unavailable,
	}
}

// RecordFromValues is the inverse of Values. Missing trailing values are
// unavailable.
func RecordFromValues(values []string) Record {
	r := NewRecord()
	for i, kind := range Fields {
		if i < len(values) && values[i] != "" {
			r.Set(kind, values[i])
		}
	}
	return r
}

// Set assigns the field of the given kind.
func (r *Record) Set(kind FieldKind, value string) {
	switch kind {
	case FieldName:
		r.Name = value
	case FieldTitle:
		r.Title = value
	case FieldLocation:
		r.Location = value
	case FieldSummary:
		r.Summary = value
	case FieldConnections:
		r.Connections = value
	case FieldLink:
		r.ProfileLink = value
	}
}

// Values returns the fields in Columns order.
func (r Record) Values() []string {
	return []string{r.Name, r.Title, r.Location, r.Summary, r.Connections, r.ProfileLink}
}

// Accepted reports whether the record identifies a profile: it needs a name
// or a real profile link.
func (r Record) Accepted() bool {
	if r.Name != Unavailable {
		return true
	}
	return r.ProfileLink != Unavailable && strings.TrimSpace(r.ProfileLink) != ""
}
