package manuscript

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseFile parses a JATS manuscript from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manuscript: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Parse parses a JATS manuscript. It fails on any XML well-formedness error
// and collects the DOCTYPE declaration, every element id, and every xref
// alongside the typed article structure.
func Parse(data []byte) (*Document, error) {
	doc := &Document{
		IDs: make(map[string][]IDUse),
	}

	if err := scan(data, doc); err != nil {
		return nil, err
	}

	if err := xml.Unmarshal(data, &doc.Article); err != nil {
		return nil, fmt.Errorf("decode article: %w", err)
	}
	if doc.Article.XMLName.Local != "article" {
		return nil, fmt.Errorf("root element is %q, expected article", doc.Article.XMLName.Local)
	}

	return doc, nil
}

// scan walks every token in the document, verifying well-formedness and
// recording the DOCTYPE, ids and xrefs with their source lines.
func scan(data []byte, doc *Document) error {
	d := xml.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			line, col := d.InputPos()
			return fmt.Errorf("malformed XML at line %d column %d: %w", line, col, err)
		}

		switch t := tok.(type) {
		case xml.Directive:
			public, system, ok := parseDoctype(string(t))
			if ok {
				doc.DoctypePublicID = public
				doc.DoctypeSystemID = system
			}

		case xml.StartElement:
			line, _ := d.InputPos()
			for _, attr := range t.Attr {
				if attr.Name.Local == "id" && attr.Value != "" {
					doc.IDs[attr.Value] = append(doc.IDs[attr.Value], IDUse{
						Element: t.Name.Local,
						Line:    line,
					})
				}
			}
			if t.Name.Local == "xref" {
				use := XrefUse{Line: line}
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "rid":
						use.RID = attr.Value
					case "ref-type":
						use.RefType = attr.Value
					}
				}
				doc.Xrefs = append(doc.Xrefs, use)
			}
		}
	}
}

// parseDoctype extracts the public and system identifiers from a DOCTYPE
// directive. Returns ok=false for non-DOCTYPE directives.
func parseDoctype(directive string) (public, system string, ok bool) {
	trimmed := strings.TrimSpace(directive)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "DOCTYPE") {
		return "", "", false
	}

	quoted := splitQuoted(trimmed)
	if strings.Contains(trimmed, "PUBLIC") {
		if len(quoted) > 0 {
			public = quoted[0]
		}
		if len(quoted) > 1 {
			system = quoted[1]
		}
	} else if strings.Contains(trimmed, "SYSTEM") && len(quoted) > 0 {
		system = quoted[0]
	}
	return public, system, true
}

// splitQuoted returns the contents of double- or single-quoted substrings in
// order of appearance.
func splitQuoted(s string) []string {
	var out []string
	for {
		start := strings.IndexAny(s, `"'`)
		if start == -1 {
			return out
		}
		quote := s[start]
		rest := s[start+1:]
		end := strings.IndexByte(rest, quote)
		if end == -1 {
			return out
		}
		out = append(out, rest[:end])
		s = rest[end+1:]
	}
}
