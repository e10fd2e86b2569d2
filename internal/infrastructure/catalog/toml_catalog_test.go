package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"repairdesk/internal/errs"
)

const sampleCatalog = `
version = 1

[[parts]]
code = "A-100"
description = "Carbon brush 6x8"
parent = "A-100P"

[[parts]]
code = "A-100P"
description = "Carbon brush kit"

[[parts]]
code = "B-200"
description = "Trigger switch"
`

func TestLoadResolvesParentCodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parts.toml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatalf("write catalogue: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx := context.Background()
	parent, found, err := cat.ParentCode(ctx, " A-100 ")
	if err != nil || !found || parent != "A-100P" {
		t.Fatalf("ParentCode(A-100) = %q, %v, %v", parent, found, err)
	}
	if _, found, _ := cat.ParentCode(ctx, "B-200"); found {
		t.Fatalf("ParentCode(B-200) found = true, want false")
	}
	if _, found, err := cat.ParentCode(ctx, "Z-999"); found || !errs.IsNotFound(err) {
		t.Fatalf("ParentCode(unknown) = %v, %v, want not found error", found, err)
	}

	parts := cat.Parts()
	if len(parts) != 3 || parts[0].Code != "A-100" {
		t.Fatalf("Parts() = %#v", parts)
	}
}

func TestEmptyPathHasNoSubstitutions(t *testing.T) {
	cat, err := Load("  ")
	if err != nil {
		t.Fatalf("Load(empty) error = %v", err)
	}
	if _, found, err := cat.ParentCode(context.Background(), "ANY-CODE"); err != nil || found {
		t.Fatalf("ParentCode() = %v, %v", found, err)
	}
}

func TestParseRejectsBadCatalogues(t *testing.T) {
	cases := map[string]string{
		"version":    "version = 2\n",
		"self":       "version = 1\n[[parts]]\ncode = \"A\"\nparent = \"A\"\n",
		"duplicate":  "version = 1\n[[parts]]\ncode = \"A\"\n[[parts]]\ncode = \"A\"\n",
		"chain":      "version = 1\n[[parts]]\ncode = \"A\"\nparent = \"B\"\n[[parts]]\ncode = \"B\"\nparent = \"C\"\n",
		"empty code": "version = 1\n[[parts]]\ndescription = \"x\"\n",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("Parse(%s) error = nil", name)
		} else if strings.TrimSpace(err.Error()) == "" {
			t.Fatalf("Parse(%s) returned an empty error", name)
		}
	}
}
