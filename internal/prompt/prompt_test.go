package prompt

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-auditor/internal/payload"
)

func blob(name, mime, text string) payload.Blob {
	return payload.Blob{Name: name, MIMEType: mime, Data: base64.StdEncoding.EncodeToString([]byte(text))}
}

func auditInputs() Inputs {
	return Inputs{Pairs: []payload.BlobPair{
		{Source: blob("a.docx", "text/plain", "Title A"), XML: blob("a.xml", "text/xml", "<title>A</title>")},
		{Source: blob("b.docx", "text/plain", "Title B"), XML: blob("b.xml", "text/xml", "<title>B</title>")},
	}}
}

func TestSystemInstructionInterpolatesKnowledgeBase(t *testing.T) {
	kb := "# Rules\n- H1 maps to <title>"
	got := SystemInstruction(kb)

	assert.Contains(t, got, "=== ACTIVE KNOWLEDGE BASE (LIVING RULEBOOK) ===\n"+kb+"\n-----")
	assert.Contains(t, got, `# XML Conversion Audit Report`)
	assert.NotContains(t, got, "{{KNOWLEDGE_BASE}}")
}

func TestBuildAudit(t *testing.T) {
	req, err := Build("KB", ModeAudit, "gemini-flash-latest", auditInputs())
	require.NoError(t, err)

	assert.Equal(t, ModeAudit, req.Mode)
	assert.Equal(t, "gemini-flash-latest", req.Model)
	require.Len(t, req.Parts, 9)
	assert.Equal(t, "/audit\n\nPlease audit the following conversion pairs against the Knowledge Base:", req.Parts[0].Text)
	assert.Equal(t, "\n\n=== PAIR 1 ===\n--- SOURCE DOCX (a.docx) ---", req.Parts[1].Text)
	assert.Equal(t, "a.docx", req.Parts[2].Blob.Name)
	assert.Equal(t, "\n--- CONVERTED XML (a.xml) ---", req.Parts[3].Text)
	assert.Equal(t, "text/xml", req.Parts[4].Blob.MIMEType)
	assert.Equal(t, "\n\n=== PAIR 2 ===\n--- SOURCE DOCX (b.docx) ---", req.Parts[5].Text)
	assert.Equal(t, "b.xml", req.Parts[8].Blob.Name)
}

func TestBuildAuditBlobsAreIndependent(t *testing.T) {
	in := auditInputs()
	req, err := Build("KB", ModeAudit, "m", in)
	require.NoError(t, err)

	in.Pairs[0].Source.Name = "changed"
	assert.Equal(t, "a.docx", req.Parts[2].Blob.Name)
	assert.NotSame(t, req.Parts[2].Blob, req.Parts[6].Blob)
}

func TestBuildIngest(t *testing.T) {
	ref := blob("good.xml", "text/xml", "<doc/>")
	req, err := Build("KB", ModeIngest, "gpt-4o", Inputs{Reference: &ref})
	require.NoError(t, err)

	require.Len(t, req.Parts, 2)
	assert.Equal(t, "/ingest\n\n=== REFERENCE XML (good.xml) ===", req.Parts[0].Text)
	assert.Equal(t, ref, *req.Parts[1].Blob)

	_, err = Build("KB", ModeIngest, "gpt-4o", Inputs{})
	assert.Error(t, err)
}

func TestBuildUpdate(t *testing.T) {
	req, err := Build("KB", ModeUpdate, "gpt-4o", Inputs{Instruction: "redefine how <em> tags are used"})
	require.NoError(t, err)

	require.Len(t, req.Parts, 1)
	assert.Equal(t, "/update redefine how <em> tags are used", req.Parts[0].Text)
}

func TestBuildUnknownMode(t *testing.T) {
	_, err := Build("KB", Mode("kb"), "gpt-4o", Inputs{})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"audit", "ingest", "update"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("AUDIT")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestFlattenAudit(t *testing.T) {
	req, err := Build("KB", ModeAudit, "gpt-4o", auditInputs())
	require.NoError(t, err)

	got, err := Flatten(req)
	require.NoError(t, err)

	want := "/audit\n\nPlease audit the following conversion pairs against the Knowledge Base:\n" +
		"\n\n=== PAIR 1 ===\n--- SOURCE DOCX (a.docx) ---\n" +
		"Title A" +
		"\n--- CONVERTED XML (a.xml) ---\n" +
		"<title>A</title>" +
		"\n\n=== PAIR 2 ===\n--- SOURCE DOCX (b.docx) ---\n" +
		"Title B" +
		"\n--- CONVERTED XML (b.xml) ---\n" +
		"<title>B</title>"
	assert.Equal(t, want, got)
}

func TestFlattenIngestAndUpdate(t *testing.T) {
	ref := blob("good.xml", "text/xml", "<doc>é</doc>")
	req, err := Build("KB", ModeIngest, "gpt-4o", Inputs{Reference: &ref})
	require.NoError(t, err)
	got, err := Flatten(req)
	require.NoError(t, err)
	assert.Equal(t, "/ingest\n\n=== REFERENCE XML (good.xml) ===\n<doc>é</doc>", got)

	req, err = Build("KB", ModeUpdate, "gpt-4o", Inputs{Instruction: "drop rule 3"})
	require.NoError(t, err)
	got, err = Flatten(req)
	require.NoError(t, err)
	assert.Equal(t, "/update drop rule 3", got)
}

func TestFlattenRejectsCorruptBlob(t *testing.T) {
	bad := payload.Blob{Name: "bad.xml", Data: "%%%"}
	_, err := Flatten(Request{Parts: []Part{{Text: "x"}, {Blob: &bad}}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bad.xml"))
}
