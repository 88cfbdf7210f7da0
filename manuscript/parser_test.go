package manuscript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleJATS = `<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE article PUBLIC "-//NLM//DTD JATS (Z39.96) Journal Publishing DTD v1.2 20190208//EN"
                  "JATS-publishing1.dtd">
<article xmlns:xlink="http://www.w3.org/1999/xlink" dtd-version="1.2" article-type="other">
<front>
<journal-meta>
<journal-id journal-id-type="publisher-id">JOSS</journal-id>
<journal-title-group>
<journal-title>Journal of Open Source Software</journal-title>
</journal-title-group>
<issn publication-format="electronic">2475-9066</issn>
<publisher>
<publisher-name>Open Journals</publisher-name>
</publisher>
</journal-meta>
<article-meta>
<article-id pub-id-type="publisher-id">6684</article-id>
<article-id pub-id-type="doi">10.21105/joss.06684</article-id>
<title-group>
<article-title>servir-aces: A Python Package for Training Machine Learning Models for Remote Sensing Applications</article-title>
</title-group>
<contrib-group>
<contrib contrib-type="author">
<contrib-id contrib-id-type="orcid">https://orcid.org/0000-0001-6167-8689</contrib-id>
<name>
<surname>Bhandari</surname>
<given-names>Biplov</given-names>
</name>
<xref ref-type="aff" rid="aff-1"/>
</contrib>
<contrib contrib-type="author">
<name>
<surname>Mayer</surname>
<given-names>Timothy</given-names>
</name>
<xref ref-type="aff" rid="aff-1"/>
</contrib>
<aff id="aff-1">
<institution-wrap>
<institution>SERVIR Science Coordination Office, NASA Marshall Space Flight Center</institution>
</institution-wrap>
</aff>
</contrib-group>
<pub-date date-type="pub" publication-format="electronic" iso-8601-date="2024-08-09">
<day>9</day>
<month>8</month>
<year>2024</year>
</pub-date>
<kwd-group kwd-group-type="author">
<kwd>remote sensing</kwd>
<kwd>machine learning</kwd>
<kwd>agriculture</kwd>
</kwd-group>
</article-meta>
</front>
<body>
<sec id="summary">
<title>Summary</title>
<p>Google Earth Engine <xref alt="(Gorelick et al., 2017)" rid="ref-Gorelick2017" ref-type="bibr">(Gorelick et al., 2017)</xref>
provides planetary-scale analysis. Recent work maps rice fields across Bhutan
<xref alt="(Mayer et al., 2023)" rid="ref-Mayer2023" ref-type="bibr">(Mayer et al., 2023)</xref>.</p>
</sec>
</body>
<back>
<ref-list>
<title/>
<ref id="ref-Gorelick2017">
<element-citation publication-type="journal-article">
<person-group person-group-type="author">
<name><surname>Gorelick</surname><given-names>Noel</given-names></name>
</person-group>
<article-title>Google Earth Engine: Planetary-scale geospatial analysis for everyone</article-title>
<source>Remote Sensing of Environment</source>
<year iso-8601-date="2017">2017</year>
<volume>202</volume>
<pub-id pub-id-type="doi">10.1016/j.rse.2017.06.031</pub-id>
</element-citation>
</ref>
<ref id="ref-Mayer2023">
<element-citation publication-type="journal-article">
<person-group person-group-type="author">
<name><surname>Mayer</surname><given-names>Timothy</given-names></name>
</person-group>
<article-title>Employing the agricultural classification and estimation service (ACES) for mapping smallholder rice farms in Bhutan</article-title>
<source>Frontiers in Environmental Science</source>
<year iso-8601-date="2023">2023</year>
<pub-id pub-id-type="doi">10.3389/fenvs.2023.1137835</pub-id>
</element-citation>
</ref>
</ref-list>
</back>
</article>
`

func TestParseSampleManuscript(t *testing.T) {
	doc, err := Parse([]byte(sampleJATS))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !strings.Contains(doc.DoctypePublicID, "JATS (Z39.96) Journal Publishing DTD") {
		t.Errorf("unexpected DOCTYPE public id: %q", doc.DoctypePublicID)
	}
	if doc.Article.DTDVersion != "1.2" {
		t.Errorf("expected dtd-version 1.2, got %q", doc.Article.DTDVersion)
	}

	meta := &doc.Article.Front.Meta
	if !strings.HasPrefix(meta.Title, "servir-aces") {
		t.Errorf("unexpected title: %q", meta.Title)
	}
	if got := meta.DOI(); got != "10.21105/joss.06684" {
		t.Errorf("unexpected article DOI: %q", got)
	}

	contributors := meta.Contributors()
	if len(contributors) != 2 {
		t.Fatalf("expected 2 contributors, got %d", len(contributors))
	}
	if got := contributors[0].ORCID(); got != "https://orcid.org/0000-0001-6167-8689" {
		t.Errorf("unexpected ORCID: %q", got)
	}
	if got := contributors[0].Name.String(); got != "Biplov Bhandari" {
		t.Errorf("unexpected name: %q", got)
	}
	if contributors[1].ORCID() != "" {
		t.Errorf("expected empty ORCID for second contributor")
	}

	affs := meta.Affiliations()
	if len(affs) != 1 || affs[0].ID != "aff-1" {
		t.Fatalf("unexpected affiliations: %+v", affs)
	}

	if len(meta.KeywordGroups) != 1 || len(meta.KeywordGroups[0].Keywords) != 3 {
		t.Errorf("unexpected keyword groups: %+v", meta.KeywordGroups)
	}

	refs := doc.Article.Back.RefList.Refs
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if got := refs[0].Citation.DOI(); got != "10.1016/j.rse.2017.06.031" {
		t.Errorf("unexpected citation DOI: %q", got)
	}
	if refs[1].Citation.Year.Value != "2023" {
		t.Errorf("unexpected citation year: %q", refs[1].Citation.Year.Value)
	}
}

func TestParseCollectsReferenceGraph(t *testing.T) {
	doc, err := Parse([]byte(sampleJATS))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// aff xrefs (2) plus bibr xrefs (2).
	if len(doc.Xrefs) != 4 {
		t.Fatalf("expected 4 xrefs, got %d", len(doc.Xrefs))
	}

	for _, id := range []string{"aff-1", "summary", "ref-Gorelick2017", "ref-Mayer2023"} {
		if !doc.HasID(id) {
			t.Errorf("expected id %q to be declared", id)
		}
	}

	cited := doc.CitedRIDs()
	if !cited["ref-Gorelick2017"] || !cited["ref-Mayer2023"] {
		t.Errorf("expected both refs cited, got %v", cited)
	}
	if cited["aff-1"] {
		t.Error("affiliation xref must not count as a citation")
	}
}

func TestParseMalformedXML(t *testing.T) {
	_, err := Parse([]byte("<article><front></article>"))
	if err == nil {
		t.Fatal("expected error for mismatched tags")
	}
	if !strings.Contains(err.Error(), "malformed XML at line") {
		t.Errorf("expected position info in error, got: %v", err)
	}
}

func TestParseWrongRootElement(t *testing.T) {
	_, err := Parse([]byte("<book><title>not JATS</title></book>"))
	if err == nil {
		t.Fatal("expected error for non-article root")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.jats.xml")
	if err := os.WriteFile(path, []byte(sampleJATS), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	doc, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse file: %v", err)
	}
	if doc.Path != path {
		t.Errorf("expected path %q, got %q", path, doc.Path)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "absent.xml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseDoctypeVariants(t *testing.T) {
	tests := []struct {
		name       string
		directive  string
		wantPublic string
		wantSystem string
	}{
		{
			name:       "public",
			directive:  `<!DOCTYPE article PUBLIC "-//NLM//DTD JATS (Z39.96) Journal Publishing DTD v1.2 20190208//EN" "JATS-publishing1.dtd">`,
			wantPublic: "-//NLM//DTD JATS (Z39.96) Journal Publishing DTD v1.2 20190208//EN",
			wantSystem: "JATS-publishing1.dtd",
		},
		{
			name:       "system only",
			directive:  `<!DOCTYPE article SYSTEM "JATS-publishing1.dtd">`,
			wantSystem: "JATS-publishing1.dtd",
		},
		{
			name:      "none",
			directive: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.directive + "\n<article><front><article-meta/></front></article>"
			doc, err := Parse([]byte(input))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if doc.DoctypePublicID != tt.wantPublic {
				t.Errorf("public id: expected %q, got %q", tt.wantPublic, doc.DoctypePublicID)
			}
			if doc.DoctypeSystemID != tt.wantSystem {
				t.Errorf("system id: expected %q, got %q", tt.wantSystem, doc.DoctypeSystemID)
			}
		})
	}
}
