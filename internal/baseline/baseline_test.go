package baseline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const mayRelease = `name: 2025-05 Patch Tuesday
released: "2025-05-13"
patches:
  - KB5058524
  - " KB5058385 "
  - ""
  - KB5058383
`

func TestParseTrimsAndDropsBlanks(t *testing.T) {
	b, err := Parse([]byte(mayRelease))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Name != "2025-05 Patch Tuesday" || b.Released != "2025-05-13" {
		t.Fatalf("unexpected header: %+v", b)
	}
	want := []string{"KB5058524", "KB5058385", "KB5058383"}
	if strings.Join(b.Patches, ",") != strings.Join(want, ",") {
		t.Fatalf("Patches = %v, want %v", b.Patches, want)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("name: x\npatchs:\n  - KB1\n")); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestParseRejectsEmptyList(t *testing.T) {
	if _, err := Parse([]byte("name: x\npatches: []\n")); err == nil {
		t.Fatal("expected error for empty baseline")
	}
}

func TestResolveInlineThenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "may.yaml")
	if err := os.WriteFile(path, []byte(mayRelease), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve([]string{"KB5055661"}, path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "KB5055661,KB5058524,KB5058385,KB5058383"
	if strings.Join(got, ",") != want {
		t.Fatalf("Resolve = %v, want %s", got, want)
	}
}

func TestResolveRequiresTargets(t *testing.T) {
	if _, err := Resolve(nil, ""); err == nil {
		t.Fatal("expected error with no targets")
	}
}
