// Package validation runs document integrity checks over parsed JATS
// manuscripts: reference resolution, duplicate ids, DOCTYPE identification
// and front-matter completeness.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/servir/aces/manuscript"
)

// Pre-compiled patterns for identifier syntax checks.
var (
	// orcidRe matches a bare or https ORCID identifier.
	orcidRe = regexp.MustCompile(`^(?:https?://orcid\.org/)?\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)
	// doiRe matches the modern DOI syntax.
	doiRe = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
)

// jatsPublicIDFragment identifies the JATS Journal Publishing DTD family in
// a DOCTYPE public identifier.
const jatsPublicIDFragment = "JATS (Z39.96) Journal Publishing DTD"

// Check names reported in results.
const (
	CheckDoctype      = "doctype"
	CheckXrefs        = "xref-resolution"
	CheckDuplicateIDs = "duplicate-ids"
	CheckRefsCited    = "refs-cited"
	CheckFrontMatter  = "front-matter"
	CheckCitations    = "citations"
)

// Issue is one finding from a check.
type Issue struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}

// Report contains the result of validating one manuscript.
type Report struct {
	Path     string            `json:"path,omitempty"`
	Valid    bool              `json:"valid"`
	Failures []Issue           `json:"failures,omitempty"`
	Warnings []Issue           `json:"warnings,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// Config controls validation strictness.
type Config struct {
	// RequireDoctype fails manuscripts whose DOCTYPE does not name the
	// JATS Journal Publishing DTD.
	RequireDoctype bool

	// RequireORCID fails contributors without an ORCID. When unset, a
	// present but malformed ORCID still fails.
	RequireORCID bool

	// DTDVersion, when set, is the expected dtd-version attribute value.
	DTDVersion string
}

// DefaultConfig returns the validation defaults used for JOSS submissions.
func DefaultConfig() Config {
	return Config{
		RequireDoctype: true,
		RequireORCID:   false,
		DTDVersion:     "1.2",
	}
}

// Validator validates parsed manuscripts.
type Validator struct {
	config Config
}

// New creates a Validator with the given configuration.
func New(config Config) *Validator {
	return &Validator{config: config}
}

// NewDefault creates a Validator with default configuration.
func NewDefault() *Validator {
	return New(DefaultConfig())
}

// Validate runs all integrity checks over a parsed manuscript.
func (v *Validator) Validate(doc *manuscript.Document) *Report {
	report := &Report{
		Path:    doc.Path,
		Valid:   true,
		Details: make(map[string]string),
	}

	v.checkDoctype(doc, report)
	v.checkDuplicateIDs(doc, report)
	v.checkXrefs(doc, report)
	v.checkRefsCited(doc, report)
	v.checkFrontMatter(doc, report)
	v.checkCitations(doc, report)

	return report
}

func (r *Report) fail(check, format string, args ...any) {
	r.Valid = false
	r.Failures = append(r.Failures, Issue{Check: check, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warn(check, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Check: check, Message: fmt.Sprintf(format, args...)})
}

func (v *Validator) checkDoctype(doc *manuscript.Document, report *Report) {
	if doc.DoctypePublicID == "" {
		if v.config.RequireDoctype {
			report.fail(CheckDoctype, "missing DOCTYPE declaration")
		} else {
			report.warn(CheckDoctype, "missing DOCTYPE declaration")
		}
		return
	}

	if !strings.Contains(doc.DoctypePublicID, jatsPublicIDFragment) {
		report.fail(CheckDoctype, "DOCTYPE public id %q does not name the JATS Journal Publishing DTD", doc.DoctypePublicID)
		return
	}

	if v.config.DTDVersion != "" && doc.Article.DTDVersion != "" && doc.Article.DTDVersion != v.config.DTDVersion {
		report.warn(CheckDoctype, "dtd-version is %q, expected %q", doc.Article.DTDVersion, v.config.DTDVersion)
	}
	report.Details[CheckDoctype] = doc.DoctypePublicID
}

func (v *Validator) checkDuplicateIDs(doc *manuscript.Document, report *Report) {
	duplicates := 0
	for id, uses := range doc.IDs {
		if len(uses) > 1 {
			duplicates++
			lines := make([]string, len(uses))
			for i, use := range uses {
				lines[i] = fmt.Sprintf("%s at line %d", use.Element, use.Line)
			}
			report.fail(CheckDuplicateIDs, "id %q declared %d times (%s)", id, len(uses), strings.Join(lines, ", "))
		}
	}
	if duplicates == 0 {
		report.Details[CheckDuplicateIDs] = fmt.Sprintf("%d unique ids", len(doc.IDs))
	}
}

func (v *Validator) checkXrefs(doc *manuscript.Document, report *Report) {
	dangling := 0
	for _, x := range doc.Xrefs {
		if x.RID == "" {
			report.fail(CheckXrefs, "xref at line %d has no rid", x.Line)
			dangling++
			continue
		}
		if !doc.HasID(x.RID) {
			report.fail(CheckXrefs, "xref %q at line %d does not resolve to any element id", x.RID, x.Line)
			dangling++
		}
	}
	if dangling == 0 {
		report.Details[CheckXrefs] = fmt.Sprintf("%d xrefs resolve", len(doc.Xrefs))
	}
}

// checkRefsCited warns about bibliography entries no bibr xref points at.
// Unreferenced entries are legal JATS but usually indicate a stale
// reference list.
func (v *Validator) checkRefsCited(doc *manuscript.Document, report *Report) {
	cited := doc.CitedRIDs()
	uncited := 0
	for _, ref := range doc.Article.Back.RefList.Refs {
		if ref.ID == "" {
			report.fail(CheckRefsCited, "bibliography entry without an id (source %q)", ref.Citation.Source)
			continue
		}
		if !cited[ref.ID] {
			report.warn(CheckRefsCited, "bibliography entry %q is never cited", ref.ID)
			uncited++
		}
	}
	if uncited == 0 {
		report.Details[CheckRefsCited] = fmt.Sprintf("%d entries all cited", len(doc.Article.Back.RefList.Refs))
	}
}

func (v *Validator) checkFrontMatter(doc *manuscript.Document, report *Report) {
	meta := &doc.Article.Front.Meta

	if strings.TrimSpace(meta.Title) == "" {
		report.fail(CheckFrontMatter, "missing article title")
	}

	contributors := meta.Contributors()
	if len(contributors) == 0 {
		report.fail(CheckFrontMatter, "no contributors declared")
	}
	for _, c := range contributors {
		name := c.Name.String()
		if name == "" {
			report.fail(CheckFrontMatter, "contributor without a name")
			name = "(unnamed)"
		}
		orcid := c.ORCID()
		switch {
		case orcid == "" && v.config.RequireORCID:
			report.fail(CheckFrontMatter, "contributor %s has no ORCID", name)
		case orcid != "" && !orcidRe.MatchString(orcid):
			report.fail(CheckFrontMatter, "contributor %s has malformed ORCID %q", name, orcid)
		}
	}

	if len(meta.KeywordGroups) == 0 {
		report.warn(CheckFrontMatter, "no keyword groups declared")
	}
	if len(meta.PubDates) == 0 {
		report.warn(CheckFrontMatter, "no publication date declared")
	}
	if doi := meta.DOI(); doi != "" && !doiRe.MatchString(doi) {
		report.warn(CheckFrontMatter, "article DOI %q does not match DOI syntax", doi)
	}

	report.Details[CheckFrontMatter] = fmt.Sprintf("%d contributors, %d affiliations",
		len(contributors), len(meta.Affiliations()))
}

func (v *Validator) checkCitations(doc *manuscript.Document, report *Report) {
	incomplete := 0
	for _, ref := range doc.Article.Back.RefList.Refs {
		c := &ref.Citation
		if strings.TrimSpace(c.Source) == "" {
			report.warn(CheckCitations, "citation %q has no source", ref.ID)
			incomplete++
		}
		if strings.TrimSpace(c.Year.Value) == "" && strings.TrimSpace(c.Year.ISO) == "" {
			report.warn(CheckCitations, "citation %q has no year", ref.ID)
			incomplete++
		}
		if doi := c.DOI(); doi != "" && !doiRe.MatchString(doi) {
			report.warn(CheckCitations, "citation %q has malformed DOI %q", ref.ID, doi)
			incomplete++
		}
	}
	if incomplete == 0 {
		report.Details[CheckCitations] = "all citations complete"
	}
}

// FormatFeedback renders the report as markdown for submitters.
func (r *Report) FormatFeedback() string {
	var sb strings.Builder

	if r.Path != "" {
		sb.WriteString(fmt.Sprintf("## Manuscript Check: %s\n\n", r.Path))
	} else {
		sb.WriteString("## Manuscript Check\n\n")
	}

	if r.Valid {
		sb.WriteString("All integrity checks passed.\n")
	} else {
		sb.WriteString("### Failures\n\n")
		for _, issue := range r.Failures {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", issue.Check, issue.Message))
		}
	}

	if len(r.Warnings) > 0 {
		sb.WriteString("\n### Warnings\n\n")
		for _, issue := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", issue.Check, issue.Message))
		}
	}

	if len(r.Details) > 0 {
		sb.WriteString("\n### Checks\n\n")
		for _, check := range []string{CheckDoctype, CheckDuplicateIDs, CheckXrefs, CheckRefsCited, CheckFrontMatter, CheckCitations} {
			if detail, ok := r.Details[check]; ok {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", check, detail))
			}
		}
	}

	return sb.String()
}

// ValidateDocument is a convenience function using default configuration.
func ValidateDocument(doc *manuscript.Document) *Report {
	return NewDefault().Validate(doc)
}
