package bundle

import (
	"io/fs"
	"testing"
)

func TestFS(t *testing.T) {
	for _, name := range []string{".configuration", ".properties"} {
		info, err := fs.Stat(FS, name)
		if err != nil {
			t.Fatalf("expected bundled %s: %v", name, err)
		}
		if info.IsDir() || info.Size() == 0 {
			t.Errorf("expected %s to be a non-empty file", name)
		}
	}
}
