// Package manuscript models JATS (Journal Article Tag Suite) manuscripts as
// submitted to JOSS, and parses them for integrity checking.
package manuscript

import (
	"encoding/xml"
	"strings"
)

// Article is the typed JATS article structure. It models the front and back
// matter a submission check needs; body content is handled generically by
// the parser's reference scan.
type Article struct {
	XMLName     xml.Name `xml:"article"`
	DTDVersion  string   `xml:"dtd-version,attr"`
	ArticleType string   `xml:"article-type,attr"`
	Front       Front    `xml:"front"`
	Back        Back     `xml:"back"`
}

// Front is the JATS front matter.
type Front struct {
	Journal JournalMeta `xml:"journal-meta"`
	Meta    ArticleMeta `xml:"article-meta"`
}

// JournalMeta identifies the publishing journal.
type JournalMeta struct {
	IDs       []JournalID `xml:"journal-id"`
	Titles    []string    `xml:"journal-title-group>journal-title"`
	ISSN      string      `xml:"issn"`
	Publisher string      `xml:"publisher>publisher-name"`
}

// JournalID is a typed journal identifier.
type JournalID struct {
	Type  string `xml:"journal-id-type,attr"`
	Value string `xml:",chardata"`
}

// ArticleMeta carries the article's bibliographic metadata.
type ArticleMeta struct {
	IDs           []ArticleID    `xml:"article-id"`
	Title         string         `xml:"title-group>article-title"`
	ContribGroups []ContribGroup `xml:"contrib-group"`
	PubDates      []PubDate      `xml:"pub-date"`
	KeywordGroups []KwdGroup     `xml:"kwd-group"`
}

// DOI returns the article's DOI, or empty string.
func (m *ArticleMeta) DOI() string {
	for _, id := range m.IDs {
		if id.Type == "doi" {
			return strings.TrimSpace(id.Value)
		}
	}
	return ""
}

// Contributors returns all contributors across contributor groups.
func (m *ArticleMeta) Contributors() []Contrib {
	var out []Contrib
	for _, g := range m.ContribGroups {
		out = append(out, g.Contribs...)
	}
	return out
}

// Affiliations returns all affiliations across contributor groups.
func (m *ArticleMeta) Affiliations() []Affiliation {
	var out []Affiliation
	for _, g := range m.ContribGroups {
		out = append(out, g.Affiliations...)
	}
	return out
}

// ArticleID is a typed article identifier (doi, publisher-id).
type ArticleID struct {
	Type  string `xml:"pub-id-type,attr"`
	Value string `xml:",chardata"`
}

// ContribGroup holds contributors and their affiliations.
type ContribGroup struct {
	Contribs     []Contrib     `xml:"contrib"`
	Affiliations []Affiliation `xml:"aff"`
}

// Contrib is one contributor record.
type Contrib struct {
	Type  string      `xml:"contrib-type,attr"`
	IDs   []ContribID `xml:"contrib-id"`
	Name  Name        `xml:"name"`
	Xrefs []Xref      `xml:"xref"`
}

// ORCID returns the contributor's ORCID value, or empty string.
func (c *Contrib) ORCID() string {
	for _, id := range c.IDs {
		if id.Type == "orcid" {
			return strings.TrimSpace(id.Value)
		}
	}
	return ""
}

// ContribID is a typed contributor identifier.
type ContribID struct {
	Type  string `xml:"contrib-id-type,attr"`
	Value string `xml:",chardata"`
}

// Name is a personal name.
type Name struct {
	Surname    string `xml:"surname"`
	GivenNames string `xml:"given-names"`
}

// String renders the name as "Given Surname".
func (n Name) String() string {
	return strings.TrimSpace(n.GivenNames + " " + n.Surname)
}

// Affiliation is an institutional affiliation with a referenceable id.
type Affiliation struct {
	ID          string `xml:"id,attr"`
	Institution string `xml:"institution-wrap>institution"`
}

// Xref is a cross-reference to another element by id.
type Xref struct {
	RefType string `xml:"ref-type,attr"`
	RID     string `xml:"rid,attr"`
	Text    string `xml:",chardata"`
}

// PubDate is a publication date.
type PubDate struct {
	Type  string `xml:"date-type,attr"`
	ISO   string `xml:"iso-8601-date,attr"`
	Day   string `xml:"day"`
	Month string `xml:"month"`
	Year  string `xml:"year"`
}

// KwdGroup is a keyword group.
type KwdGroup struct {
	Type     string   `xml:"kwd-group-type,attr"`
	Keywords []string `xml:"kwd"`
}

// Back is the JATS back matter.
type Back struct {
	RefList RefList `xml:"ref-list"`
}

// RefList is the bibliography.
type RefList struct {
	Title string `xml:"title"`
	Refs  []Ref  `xml:"ref"`
}

// Ref is one bibliography entry with a citable id.
type Ref struct {
	ID       string          `xml:"id,attr"`
	Citation ElementCitation `xml:"element-citation"`
}

// ElementCitation is a structured citation.
type ElementCitation struct {
	Type         string  `xml:"publication-type,attr"`
	Authors      []Name  `xml:"person-group>name"`
	ArticleTitle string  `xml:"article-title"`
	Source       string  `xml:"source"`
	Year         Year    `xml:"year"`
	Volume       string  `xml:"volume"`
	Issue        string  `xml:"issue"`
	FirstPage    string  `xml:"fpage"`
	LastPage     string  `xml:"lpage"`
	PubIDs       []PubID `xml:"pub-id"`
}

// DOI returns the citation's DOI, or empty string.
func (c *ElementCitation) DOI() string {
	for _, id := range c.PubIDs {
		if id.Type == "doi" {
			return strings.TrimSpace(id.Value)
		}
	}
	return ""
}

// Year is a citation year with its ISO attribute form.
type Year struct {
	ISO   string `xml:"iso-8601-date,attr"`
	Value string `xml:",chardata"`
}

// PubID is a typed publication identifier inside a citation.
type PubID struct {
	Type  string `xml:"pub-id-type,attr"`
	Value string `xml:",chardata"`
}

// XrefUse records one xref occurrence anywhere in the document.
type XrefUse struct {
	// RID is the target element id.
	RID string

	// RefType is the xref type (bibr, aff, fig).
	RefType string

	// Line is the 1-based source line of the xref element.
	Line int
}

// IDUse records one id-carrying element.
type IDUse struct {
	// Element is the local element name carrying the id.
	Element string

	// Line is the 1-based source line.
	Line int
}

// Document is a parsed manuscript: the typed article plus the reference
// graph the integrity checks run over.
type Document struct {
	// Path is the source file path, when parsed from a file.
	Path string

	// Article is the typed JATS structure.
	Article Article

	// DoctypePublicID is the public identifier from the DOCTYPE
	// declaration, empty when the document has none.
	DoctypePublicID string

	// DoctypeSystemID is the system identifier from the DOCTYPE.
	DoctypeSystemID string

	// IDs maps every element id to its occurrences. More than one
	// occurrence is a duplicate id.
	IDs map[string][]IDUse

	// Xrefs lists every xref in document order.
	Xrefs []XrefUse
}

// HasID reports whether the document declares the given element id.
func (d *Document) HasID(id string) bool {
	return len(d.IDs[id]) > 0
}

// CitedRIDs returns the set of rids referenced by bibliographic xrefs.
func (d *Document) CitedRIDs() map[string]bool {
	cited := make(map[string]bool)
	for _, x := range d.Xrefs {
		if x.RefType == "bibr" {
			cited[x.RID] = true
		}
	}
	return cited
}
