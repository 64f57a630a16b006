package source

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

func collect(t *testing.T, p Provider, req Request) []string {
	t.Helper()
	var got []string
	err := p.Walk(req, func(doc Document) error {
		data, err := io.ReadAll(doc.Body)
		if err != nil {
			return err
		}
		got = append(got, doc.ID+"="+string(data))
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return got
}

func TestFS_WalkPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	etc := filepath.Join(tmpDir, "etc")
	home := filepath.Join(tmpDir, "home")
	for _, dir := range []string{etc, home} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	os.WriteFile(filepath.Join(etc, ".configuration"), []byte("etc"), 0644)
	os.WriteFile(filepath.Join(home, ".layerconf-configuration"), []byte("home"), 0644)
	os.WriteFile(filepath.Join(home, ".configuration"), []byte("ignored"), 0644)

	p := &FS{
		App:    "layerconf",
		Bundle: fstest.MapFS{".configuration": {Data: []byte("bundle")}},
		Folders: []Folder{
			{Path: etc, Specific: true},
			{Path: filepath.Join(tmpDir, "missing"), Specific: true},
			{Path: home, Specific: false},
		},
	}

	t.Run("all folders", func(t *testing.T) {
		want := []string{
			"bundle:.configuration=bundle",
			filepath.Join(etc, ".configuration") + "=etc",
			filepath.Join(home, ".layerconf-configuration") + "=home",
		}
		if diff := cmp.Diff(want, collect(t, p, Request{Name: ".configuration"})); diff != "" {
			t.Errorf("Walk() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("specific folders only", func(t *testing.T) {
		want := []string{
			"bundle:.configuration=bundle",
			filepath.Join(etc, ".configuration") + "=etc",
		}
		if diff := cmp.Diff(want, collect(t, p, Request{Name: ".configuration", SpecificOnly: true})); diff != "" {
			t.Errorf("Walk() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		if got := collect(t, p, Request{Name: ".configuration-nope"}); len(got) != 0 {
			t.Errorf("expected no documents, got %v", got)
		}
	})
}

func TestFS_FolderIsFile(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "plain")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	p := &FS{App: "layerconf", Folders: []Folder{{Path: file, Specific: true}}}
	if got := collect(t, p, Request{Name: ".configuration"}); len(got) != 0 {
		t.Errorf("expected no documents, got %v", got)
	}
}

func TestFS_UnreadableDocument(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ".configuration")
	if err := os.WriteFile(path, []byte("x"), 0000); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	p := &FS{App: "layerconf", Folders: []Folder{{Path: tmpDir, Specific: true}}}
	err := p.Walk(Request{Name: ".configuration"}, func(Document) error { return nil })
	if err == nil {
		t.Error("expected error for unreadable document")
	}
}

func TestDefaultFolders(t *testing.T) {
	want := []Folder{
		{Path: "/etc/layerconf", Specific: true},
		{Path: "/home/u/.layerconf", Specific: true},
		{Path: "/home/u", Specific: false},
		{Path: "/work/.layerconf", Specific: true},
		{Path: "/work", Specific: false},
	}
	if diff := cmp.Diff(want, DefaultFolders("layerconf", "/home/u", "/work")); diff != "" {
		t.Errorf("DefaultFolders() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want[:1], DefaultFolders("layerconf", "", "")); diff != "" {
		t.Errorf("DefaultFolders() without home mismatch (-want +got):\n%s", diff)
	}
}
