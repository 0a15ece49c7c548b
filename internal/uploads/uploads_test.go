package uploads

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSaveDataURI(t *testing.T) {
	s := newTestStore(t)
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("pngbytes"))

	name, err := s.Save(payload, "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Fatalf("expected .png suffix, got %q", name)
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(), name))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "pngbytes" {
		t.Fatalf("stored bytes differ: %q", data)
	}
}

func TestSaveBareBase64(t *testing.T) {
	s := newTestStore(t)

	name, err := s.Save(base64.StdEncoding.EncodeToString([]byte("raw")), "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(name, ".pdf") {
		t.Fatalf("expected .pdf suffix, got %q", name)
	}
}

func TestSaveUndecodablePayload(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save("data:image/png;base64,???", "x.png"); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload, got %v", err)
	}
}

func TestNamesDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	payload := base64.StdEncoding.EncodeToString([]byte("same"))

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name, err := s.Save(payload, "a.bin")
		if err != nil {
			t.Fatal(err)
		}
		if seen[name] {
			t.Fatalf("name collision: %q", name)
		}
		seen[name] = true
	}
}

func TestNoExtension(t *testing.T) {
	s := newTestStore(t)

	name, err := s.Save(base64.StdEncoding.EncodeToString([]byte("x")), "README")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(name, ".") {
		t.Fatalf("expected no extension, got %q", name)
	}
}
