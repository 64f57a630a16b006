package conf

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/redhatinsights/layerconf/internal/facts"
)

// Helper functions for creating pointer values in DTO tests
func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }
func intPtr(i int) *int          { return &i }

func TestSettings_Update(t *testing.T) {
	tests := []struct {
		name     string
		base     Settings
		overlay  settingsDTO
		expected Settings
	}{
		{
			name: "overlay replaces scalars",
			base: Settings{
				ConfigurationName: "base",
				LogLevel:          slog.LevelInfo,
				EvaluateEncoded:   true,
			},
			overlay: settingsDTO{
				ConfigurationName:     stringPtr("prod"),
				LogLevel:              stringPtr("DEBUG"),
				EvaluateEncoded:       boolPtr(false),
				ReloadIntervalSeconds: intPtr(30),
			},
			expected: Settings{
				ConfigurationName: "prod",
				LogLevel:          slog.LevelDebug,
				EvaluateEncoded:   false,
				ReloadInterval:    30 * time.Second,
			},
		},
		{
			name: "overlay appends lists",
			base: Settings{
				UINames:  []string{"web"},
				Variants: []string{"dev"},
			},
			overlay: settingsDTO{
				UINames:    []string{"tui"},
				Properties: []string{"a.b:1"},
			},
			expected: Settings{
				UINames:    []string{"web", "tui"},
				Variants:   []string{"dev"},
				Properties: []string{"a.b:1"},
			},
		},
		{
			name: "empty overlay does nothing",
			base: Settings{
				ConfigurationName:       "prod",
				IncludeSystemProperties: true,
				LogLevel:                slog.LevelWarn,
			},
			overlay: settingsDTO{},
			expected: Settings{
				ConfigurationName:       "prod",
				IncludeSystemProperties: true,
				LogLevel:                slog.LevelWarn,
			},
		},
		{
			name: "overlay can set empty strings",
			base: Settings{
				ConfigurationName: "prod",
			},
			overlay: settingsDTO{
				ConfigurationName: stringPtr(""),
			},
			expected: Settings{
				ConfigurationName: "",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.base
			result.Update(tt.overlay)
			if diff := cmp.Diff(tt.expected, result); diff != "" {
				t.Errorf("Update() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSettingsSource_ReadFile(t *testing.T) {
	// Create a temporary directory for test files
	tmpDir := t.TempDir()

	tests := []struct {
		name        string
		fileContent string
		setupFile   bool
		expectError bool
		expected    Settings
	}{
		{
			name: "valid settings file",
			fileContent: `configuration-name = "prod"
log-level = "DEBUG"
variants = ["dev", "local"]
include-system-properties = true
`,
			setupFile:   true,
			expectError: false,
			expected: Settings{
				ConfigurationName:       "prod",
				Variants:                []string{"dev", "local"},
				LogLevel:                slog.LevelDebug,
				IncludeSystemProperties: true,
				EvaluateEncoded:         true, // from defaults
			},
		},
		{
			name:        "missing file uses defaults",
			setupFile:   false,
			expectError: false,
			expected: Settings{
				LogLevel:        slog.LevelInfo, // from defaults
				EvaluateEncoded: true,           // from defaults
			},
		},
		{
			name:        "malformed file fails",
			fileContent: "log-level = ",
			setupFile:   true,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFile := filepath.Join(tmpDir, "test-"+tt.name+".toml")

			if tt.setupFile {
				if err := os.WriteFile(testFile, []byte(tt.fileContent), 0644); err != nil {
					t.Fatalf("failed to write test file: %v", err)
				}
			}

			source := &SettingsSource{Path: testFile, DropInDir: filepath.Join(tmpDir, "nonexistent")}
			result, err := source.Read()

			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.expectError {
				if diff := cmp.Diff(tt.expected, result); diff != "" {
					t.Errorf("Read() mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestParseSettingsDTO(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
		expected    settingsDTO
	}{
		{
			name: "valid TOML string",
			input: `
configuration-name = "prod"
config-folders = ["/opt/app"]
reload-interval-seconds = 5
`,
			expectError: false,
			expected: settingsDTO{
				ConfigurationName:     stringPtr("prod"),
				ConfigFolders:         []string{"/opt/app"},
				ReloadIntervalSeconds: intPtr(5),
			},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: false,
			expected:    settingsDTO{},
		},
		{
			name:        "invalid TOML",
			input:       "not valid toml ===",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseSettingsDTO(tt.input)

			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.expectError {
				if diff := cmp.Diff(tt.expected, result); diff != "" {
					t.Errorf("parseSettingsDTO() mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestSettingsSource_FullStack(t *testing.T) {
	// Create temporary directory structure for testing
	tmpDir := t.TempDir()
	mainPath := filepath.Join(tmpDir, "config.toml")
	dropinDir := filepath.Join(tmpDir, "config.toml.d")

	if err := os.Mkdir(dropinDir, 0755); err != nil {
		t.Fatalf("failed to create drop-in directory: %v", err)
	}

	t.Run("full settings stack", func(t *testing.T) {
		mainSettings := `
configuration-name = "main"
log-level = "INFO"
ui-names = ["web"]
`
		if err := os.WriteFile(mainPath, []byte(mainSettings), 0644); err != nil {
			t.Fatalf("failed to write main settings: %v", err)
		}

		// Write drop-in files (should be loaded in lexicographic order)
		dropinFiles := map[string]string{
			"10-ui.toml":    `ui-names = ["tui"]`,
			"20-debug.toml": `log-level = "DEBUG"`,
			"30-name.toml":  `configuration-name = "dropin"`,
		}

		for filename, content := range dropinFiles {
			path := filepath.Join(dropinDir, filename)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write drop-in file %s: %v", filename, err)
			}
		}

		ss := &SettingsSource{Path: mainPath, DropInDir: dropinDir}
		settings, err := ss.Read()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Defaults < Main < Drop-ins (in order)
		if settings.ConfigurationName != "dropin" {
			t.Errorf("expected ConfigurationName=dropin, got %s", settings.ConfigurationName)
		}
		if diff := cmp.Diff([]string{"web", "tui"}, settings.UINames); diff != "" {
			t.Errorf("UINames mismatch (-want +got):\n%s", diff)
		}
		if settings.LogLevel != slog.LevelDebug {
			t.Errorf("expected LogLevel=DEBUG, got %v", settings.LogLevel)
		}
	})
}

func TestSettings_Apply(t *testing.T) {
	s := Settings{
		ConfigurationName: "prod",
		UINames:           []string{"web", "tui"},
		DBNames:           []string{"pg"},
		Variants:          []string{"dev:local"},
		Properties:        []string{"a.b:1"},
		ConfigFolders:     []string{"/opt/app"},
	}
	p := facts.NewParams()
	if err := s.Apply(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if name, ok := p.ConfigurationName(); !ok || name != "prod" {
		t.Errorf("expected configuration name prod, got %q (set=%v)", name, ok)
	}
	if diff := cmp.Diff([]string{"web", "tui"}, p.UINames()); diff != "" {
		t.Errorf("UINames() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"dev", "local"}, p.ExplicitVariants()); diff != "" {
		t.Errorf("ExplicitVariants() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][2]string{{"a.b", "1"}}, p.PropertyOverrides()); diff != "" {
		t.Errorf("PropertyOverrides() mismatch (-want +got):\n%s", diff)
	}

	if err := (&Settings{Properties: []string{"broken"}}).Apply(facts.NewParams()); err == nil {
		t.Error("expected error for malformed property override")
	}
}

func TestEmbeddedDefault(t *testing.T) {
	// Test that the embedded default settings are valid TOML
	dto, err := parseSettingsDTO(defaultSettings)
	if err != nil {
		t.Fatalf("embedded default settings are invalid: %v", err)
	}

	settings := Settings{}
	settings.Update(dto)

	if settings.LogLevel != slog.LevelInfo {
		t.Errorf("expected LogLevel=INFO, got %v", settings.LogLevel)
	}
	if !settings.EvaluateEncoded {
		t.Error("expected EvaluateEncoded to default to true")
	}
	if settings.IncludeSystemProperties {
		t.Error("expected IncludeSystemProperties to default to false")
	}
	if settings.ReloadInterval != 0 {
		t.Errorf("expected no reload interval, got %v", settings.ReloadInterval)
	}
}
