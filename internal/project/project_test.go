package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.ts")
	mustWrite(t, file, "x")

	got, err := EnsureFileExists(file)
	if err != nil || got != file {
		t.Errorf("EnsureFileExists = %q, %v", got, err)
	}
	if _, err := EnsureFileExists(filepath.Join(dir, "missing.ts")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing file err = %v", err)
	}
	if _, err := EnsureFileExists(""); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("empty path err = %v", err)
	}
	if _, err := EnsureFileExists(dir); err == nil {
		t.Error("directory should be rejected")
	}
}

func TestFindManifest(t *testing.T) {
	root := t.TempDir()
	manifest := filepath.Join(root, "package.json")
	mustWrite(t, manifest, `{"name":"app"}`)
	src := filepath.Join(root, "src", "lib", "math.ts")
	mustWrite(t, src, "")

	if got := FindManifest(src); got != manifest {
		t.Errorf("FindManifest(file) = %q, want %q", got, manifest)
	}
	if got := FindManifest(filepath.Dir(src)); got != manifest {
		t.Errorf("FindManifest(dir) = %q, want %q", got, manifest)
	}

	nested := filepath.Join(root, "src", "package.json")
	mustWrite(t, nested, `{}`)
	if got := FindManifest(src); got != nested {
		t.Errorf("nearest manifest should win: got %q", got)
	}
}

func TestReadManifestAndDependencies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package.json")
	mustWrite(t, path, `{"dependencies":{"axios":"^1.6.0"},"devDependencies":{"vitest":"^3.0.0","@types/node":"20"}}`)

	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	want := "@types/node@20\naxios@^1.6.0\nvitest@^3.0.0"
	if got := Dependencies(m); got != want {
		t.Errorf("Dependencies = %q, want %q", got, want)
	}

	bad := filepath.Join(t.TempDir(), "package.json")
	mustWrite(t, bad, `{nope`)
	if _, err := ReadManifest(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestRelativeImport(t *testing.T) {
	tests := []struct {
		in, out, want string
	}{
		{"/p/src/math.ts", "/p/src/math.test.ts", "./math"},
		{"/p/src/math.ts", "/p/tests/math.test.ts", "../src/math"},
		{"/p/src/util/date.tsx", "/p/src/date.test.tsx", "./util/date"},
	}
	for _, tt := range tests {
		got, err := RelativeImport(tt.in, tt.out)
		if err != nil {
			t.Fatalf("RelativeImport(%s, %s): %v", tt.in, tt.out, err)
		}
		if got != tt.want {
			t.Errorf("RelativeImport(%s, %s) = %q, want %q", tt.in, tt.out, got, tt.want)
		}
	}
}

func TestImportStatement(t *testing.T) {
	if got := ImportStatement("clamp", "./common", true); got != "import clamp from './common'" {
		t.Errorf("default import = %q", got)
	}
	if got := ImportStatement("add", "./math", false); got != "import { add } from './math'" {
		t.Errorf("named import = %q", got)
	}
}

func TestDetectLanguage(t *testing.T) {
	for path, want := range map[string]string{
		"a.ts": "typescript", "A.TS": "typescript", "a.mts": "typescript",
		"a.tsx": "tsx", "a.js": "javascript", "a.mjs": "javascript",
	} {
		if got := DetectLanguage(path); got != want {
			t.Errorf("DetectLanguage(%s) = %q, want %q", path, got, want)
		}
	}
}

func TestWriteFileTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.test.ts")
	mustWrite(t, path, "a much longer previous content")
	if err := WriteFile(path, "short"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "short" {
		t.Errorf("content = %q", data)
	}
}
