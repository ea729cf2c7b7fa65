package cache

import (
	"testing"

	"kb-auditor/internal/payload"
	"kb-auditor/internal/prompt"
)

func TestGenerateKey(t *testing.T) {
	blob := payload.Blob{Name: "a.xml", MIMEType: "text/xml", Data: "PGEvPg=="}
	base := prompt.Request{
		Model:             "gemini-flash-latest",
		SystemInstruction: "KB v1",
		Parts:             []prompt.Part{{Text: "/ingest"}, {Blob: &blob}},
	}

	key := GenerateKey("gemini", base)
	if len(key) != 64 {
		t.Fatalf("expected hex sha256 key, got %q", key)
	}
	if key != GenerateKey("gemini", base) {
		t.Error("expected identical requests to share a key")
	}

	changedKB := base
	changedKB.SystemInstruction = "KB v2"
	changedModel := base
	changedModel.Model = "gemini-3.1-pro-preview"
	otherBlob := payload.Blob{Name: "a.xml", MIMEType: "text/xml", Data: "PGIvPg=="}
	changedBlob := base
	changedBlob.Parts = []prompt.Part{{Text: "/ingest"}, {Blob: &otherBlob}}
	// Text/blob boundaries must not collide.
	shifted := base
	shifted.Parts = []prompt.Part{{Text: "/ingest" + "\x00"}}

	for name, req := range map[string]prompt.Request{
		"knowledge base": changedKB,
		"model":          changedModel,
		"blob":           changedBlob,
		"shifted parts":  shifted,
	} {
		if GenerateKey("gemini", req) == key {
			t.Errorf("expected a different key when %s changes", name)
		}
	}
	if GenerateKey("openai", base) == key {
		t.Error("expected provider to be part of the key")
	}
}
