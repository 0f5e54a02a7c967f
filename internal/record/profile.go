package record

import "fmt"

// Column maps one CSV column to its upstream source.
type Column struct {
	Name  string
	Field string // upstream field
	Key   string // subfield of an object-valued field
	List  bool   // list-valued field, joined
}

func (c Column) value(r Record) string {
	switch {
	case c.List:
		return r.Joined(c.Field)
	case c.Key != "":
		return r.Sub(c.Field, c.Key)
	default:
		return r.String(c.Field)
	}
}

// Profile is an ordered, fixed set of columns.
type Profile struct {
	Name    string
	Columns []Column
	// Fields lists upstream fields that must be requested explicitly because
	// the API omits them from its default field set.
	Fields []string
}

// Row holds one value per profile column, in column order.
type Row []string

func plain(name string) Column { return Column{Name: name, Field: name} }

// Minimal keeps the five columns of the classic log format.
var Minimal = Profile{
	Name: "minimal",
	Columns: []Column{
		plain(DocumentNumber),
		plain(Title),
		plain(PublicationDate),
		plain("pdf_url"),
		plain("html_url"),
	},
}

// Extended keeps nineteen columns, flattening agencies, president and
// page view counts.
var Extended = Profile{
	Name: "extended",
	Columns: []Column{
		plain(DocumentNumber),
		plain(Title),
		plain("type"),
		plain("abstract"),
		plain(PublicationDate),
		plain("signing_date"),
		plain("executive_order_number"),
		plain("citation"),
		plain("start_page"),
		plain("end_page"),
		{Name: "agency_names", Field: "agency_names", List: true},
		{Name: "president", Field: "president", Key: "name"},
		{Name: "page_views", Field: "page_views", Key: "count"},
		plain("html_url"),
		plain("pdf_url"),
		plain("full_text_xml_url"),
		plain("body_html_url"),
		plain("json_url"),
		plain("disposition_notes"),
	},
}

func init() {
	for _, c := range Extended.Columns {
		Extended.Fields = append(Extended.Fields, c.Field)
	}
}

// ProfileByName returns the named profile.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case Minimal.Name:
		return Minimal, nil
	case Extended.Name:
		return Extended, nil
	}
	return Profile{}, fmt.Errorf("unknown profile %q", name)
}

// Header returns the column names in order.
func (p Profile) Header() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (p Profile) Index(name string) int {
	for i, c := range p.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Project maps an upstream record onto the profile's columns. Missing or
// wrong-shaped fields become "".
func (p Profile) Project(r Record) Row {
	row := make(Row, len(p.Columns))
	for i, c := range p.Columns {
		row[i] = c.value(r)
	}
	return row
}

// ProjectAll projects a batch.
func (p Profile) ProjectAll(recs []Record) []Row {
	rows := make([]Row, len(recs))
	for i, r := range recs {
		rows[i] = p.Project(r)
	}
	return rows
}
