package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/redhatinsights/layerconf/internal/props"
)

func TestConfig_Bool(t *testing.T) {
	e, buf := newEngine(t, map[string]string{
		".properties": "app.upper=TRUE\napp.lower=false\napp.broken=nonsense\napp.mixed=True\n",
	}, "")
	cfg := e.Config("app")

	tests := []struct {
		key  string
		def  bool
		want bool
	}{
		{key: "upper", def: false, want: true},
		{key: "lower", def: true, want: false},
		{key: "broken", def: true, want: true},
		{key: "mixed", def: false, want: false},
		{key: "missing", def: true, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cfg.Bool(tt.key, tt.def)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if !strings.Contains(buf.String(), "Property 'app.broken' contains invalid entry 'nonsense'") {
		t.Errorf("expected a warning about app.broken, got:\n%s", buf.String())
	}
}

func TestConfig_Int(t *testing.T) {
	e, buf := newEngine(t, map[string]string{
		".properties": "n.port=8080\nn.big=9223372036854775807\nn.bad=80a\n",
	}, "")
	cfg := e.Config("n")

	port, err := cfg.Int("port", 0)
	if err != nil || port != 8080 {
		t.Errorf("expected 8080, got %d (%v)", port, err)
	}
	big, err := cfg.Int64("big", 0)
	if err != nil || big != 9223372036854775807 {
		t.Errorf("expected max int64, got %d (%v)", big, err)
	}
	bad, err := cfg.Int("bad", 42)
	if err != nil || bad != 42 {
		t.Errorf("expected the default 42, got %d (%v)", bad, err)
	}
	if !strings.Contains(buf.String(), "contains invalid entry '80a'") {
		t.Errorf("expected a warning about n.bad, got:\n%s", buf.String())
	}
}

func TestConfig_List(t *testing.T) {
	e, _ := newEngine(t, map[string]string{
		".properties": "l.hosts=a, b,,c  d\n",
	}, "")

	got, err := e.Config("l").List("hosts", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	def, err := e.Config("l").List("missing", []string{"x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"x"}, def); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_Recursive(t *testing.T) {
	e, _ := newEngine(t, map[string]string{
		".properties": "a.D=from-a\nD=bare\na.b.E=5\n",
	}, "")
	cfg := e.Config("a.b.c")

	v, err := cfg.RecursiveString("D", "")
	if err != nil || v != "from-a" {
		t.Errorf("expected from-a, got %q (%v)", v, err)
	}
	n, err := cfg.RecursiveInt("E", 0)
	if err != nil || n != 5 {
		t.Errorf("expected 5, got %d (%v)", n, err)
	}
	if v, _ := cfg.String("D", "none"); v != "none" {
		t.Errorf("expected no widening without Recursive, got %q", v)
	}
	if v, _ := e.Config("x.y").RecursiveString("D", ""); v != "bare" {
		t.Errorf("expected bare, got %q", v)
	}
}

func TestConfig_Must(t *testing.T) {
	e, _ := newEngine(t, map[string]string{
		".properties": "m.name=value\nm.flag=TRUE\n",
	}, "")
	cfg := e.Config("m")

	if v, err := cfg.MustString("name"); err != nil || v != "value" {
		t.Errorf("expected value, got %q (%v)", v, err)
	}
	if v, err := cfg.MustBool("flag"); err != nil || !v {
		t.Errorf("expected true, got %v (%v)", v, err)
	}
	if _, err := cfg.MustString("missing"); !errors.Is(err, props.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
	if _, err := cfg.MustInt("missing"); !errors.Is(err, props.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
	if _, err := cfg.MustRecursiveString("missing"); !errors.Is(err, props.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestConfig_Has(t *testing.T) {
	e, _ := newEngine(t, map[string]string{".properties": "h.empty=\n"}, "")
	cfg := e.Config("h")

	if ok, err := cfg.Has("empty"); err != nil || !ok {
		t.Errorf("expected empty entry to exist, got %v (%v)", ok, err)
	}
	if ok, err := cfg.Has("missing"); err != nil || ok {
		t.Errorf("expected missing entry to be absent, got %v (%v)", ok, err)
	}
	if cfg.Prefix() != "h" {
		t.Errorf("expected prefix h, got %q", cfg.Prefix())
	}
}

func TestConfig_Scopes(t *testing.T) {
	e, _ := newEngine(t, map[string]string{".properties": "s.a=root\n"}, "")

	local := props.NewLocalScope(nil, nil)
	inner := props.NewScope(local, nil)
	cfg := e.Config("s").WithScope(inner)

	if err := cfg.Set("a", "local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := cfg.String("a", ""); v != "local" {
		t.Errorf("expected local, got %q", v)
	}
	if v, _ := e.Config("s").String("a", ""); v != "root" {
		t.Errorf("expected the root table to be untouched, got %q", v)
	}
	if inner.Store() != nil {
		t.Errorf("expected the inner scope to stay without a store")
	}

	if err := e.Config("s").Set("b", "written"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := e.Resolver()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := r.Root().Get("s.b"); !ok || v != "written" {
		t.Errorf("expected s.b in the root table, got %q (found=%v)", v, ok)
	}
}

func TestConfig_Apply(t *testing.T) {
	e, _ := newEngine(t, map[string]string{".properties": "p.path=/usr/bin\n"}, "")
	cfg := e.Config("p")

	err := cfg.Apply(
		props.Modifier{Name: "path", Value: "/opt/bin", Prepend: true, Separator: ":"},
		props.Modifier{Name: "fresh", Value: "x", Append: true, Separator: ":"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := map[string]string{}
	for _, key := range []string{"path", "fresh"} {
		v, _ := cfg.String(key, "")
		got[key] = v
	}
	want := map[string]string{"path": "/usr/bin:/opt/bin", "fresh": "x"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}
