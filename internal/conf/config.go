package conf

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/redhatinsights/layerconf/internal/facts"
)

// Default locations of the settings file and its drop-in directory.
const (
	DefaultPath      = "/etc/layerconf/config.toml"
	DefaultDropInDir = "/etc/layerconf/config.toml.d/"
)

func init() {
	sources := &SettingsSource{
		Path:      DefaultPath,
		DropInDir: DefaultDropInDir,
	}
	settings, err := sources.Read()
	if err != nil {
		dto, parseErr := parseSettingsDTO(defaultSettings)
		if parseErr != nil {
			panic(fmt.Sprintf("failed to parse embedded defaults: %v", parseErr))
		}
		settings = Settings{}
		settings.Update(dto)
	}
	Configuration = settings
}

// defaultSettings contains the embedded default settings file.
// This file is compiled into the binary and serves as the base layer
// of settings before /etc/layerconf/config.toml and drop-in files are applied.
//
//go:embed default.toml
var defaultSettings string

// Configuration is the global immutable state.
var Configuration Settings

// Settings represents the immutable bootstrap settings of the engine.
type Settings struct {
	ConfigurationName       string
	UINames                 []string
	DBNames                 []string
	Variants                []string
	Properties              []string
	ConfigFolders           []string
	LogLevel                slog.Level
	IncludeSystemProperties bool
	EvaluateEncoded         bool
	ReloadInterval          time.Duration
}

// Update applies non-nil values from a settingsDTO. Scalars are replaced,
// lists are appended to.
func (s *Settings) Update(dto settingsDTO) {
	if dto.ConfigurationName != nil {
		s.ConfigurationName = *dto.ConfigurationName
	}
	s.UINames = append(s.UINames, dto.UINames...)
	s.DBNames = append(s.DBNames, dto.DBNames...)
	s.Variants = append(s.Variants, dto.Variants...)
	s.Properties = append(s.Properties, dto.Properties...)
	s.ConfigFolders = append(s.ConfigFolders, dto.ConfigFolders...)
	if dto.LogLevel != nil {
		switch *dto.LogLevel {
		case "DEBUG":
			s.LogLevel = slog.LevelDebug
		case "INFO":
			s.LogLevel = slog.LevelInfo
		case "WARN":
			s.LogLevel = slog.LevelWarn
		case "ERROR":
			s.LogLevel = slog.LevelError
		}
	}
	if dto.IncludeSystemProperties != nil {
		s.IncludeSystemProperties = *dto.IncludeSystemProperties
	}
	if dto.EvaluateEncoded != nil {
		s.EvaluateEncoded = *dto.EvaluateEncoded
	}
	if dto.ReloadIntervalSeconds != nil {
		s.ReloadInterval = time.Duration(*dto.ReloadIntervalSeconds) * time.Second
	}
}

// Apply pushes the startup parameters held by s into p.
func (s *Settings) Apply(p *facts.Params) error {
	if s.ConfigurationName != "" {
		if err := p.SetConfigurationName(s.ConfigurationName); err != nil {
			return err
		}
	}
	for _, name := range s.UINames {
		if err := p.AddUINames(name); err != nil {
			return err
		}
	}
	for _, name := range s.DBNames {
		if err := p.AddDBNames(name); err != nil {
			return err
		}
	}
	for _, v := range s.Variants {
		if err := p.AppendExplicitVariants(v); err != nil {
			return err
		}
	}
	for _, o := range s.Properties {
		if err := p.AddPropertyOverride(o); err != nil {
			return err
		}
	}
	for _, dir := range s.ConfigFolders {
		if err := p.AddConfigFolder(dir); err != nil {
			return err
		}
	}
	return nil
}

// SettingsSource orchestrates loading settings from multiple sources.
// See the Read method.
type SettingsSource struct {
	Path      string
	DropInDir string
}

// Read loads and returns the complete Settings by merging all layers:
// 1. Embedded defaults
// 2. Main settings file
// 3. Drop-in files
func (ss *SettingsSource) Read() (Settings, error) {
	resolved := Settings{}

	// Start with embedded defaults
	dto, err := parseSettingsDTO(defaultSettings)
	if err != nil {
		slog.Error("failed to parse embedded defaults", "error", err)
		return resolved, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}
	resolved.Update(dto)

	// Load main settings file
	data, err := os.ReadFile(ss.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			// Existing but unreadable file should result in failure.
			return resolved, fmt.Errorf("failed to load %s: %w", ss.Path, err)
		}
	} else {
		mainDTO, err := parseSettingsDTO(string(data))
		if err != nil {
			return resolved, fmt.Errorf("failed to parse %s: %w", ss.Path, err)
		}
		resolved.Update(mainDTO)
	}

	// Load drop-in files
	dropInDTOs, err := ss.parseDropInFiles()
	if err != nil {
		slog.Error("failed to load drop-in files", "error", err, "dir", ss.DropInDir)
		return resolved, err
	}

	// Apply each drop-in file in order
	for _, dropInDTO := range dropInDTOs {
		resolved.Update(dropInDTO)
	}

	return resolved, nil
}

type settingsDTO struct {
	ConfigurationName       *string  `toml:"configuration-name"`
	UINames                 []string `toml:"ui-names"`
	DBNames                 []string `toml:"db-names"`
	Variants                []string `toml:"variants"`
	Properties              []string `toml:"properties"`
	ConfigFolders           []string `toml:"config-folders"`
	LogLevel                *string  `toml:"log-level"`
	IncludeSystemProperties *bool    `toml:"include-system-properties"`
	EvaluateEncoded         *bool    `toml:"evaluate-encoded"`
	ReloadIntervalSeconds   *int     `toml:"reload-interval-seconds"`
}

// parseSettingsDTO parses a TOML string into a settingsDTO.
func parseSettingsDTO(data string) (settingsDTO, error) {
	var dto settingsDTO

	if err := toml.Unmarshal([]byte(data), &dto); err != nil {
		return dto, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return dto, nil
}

// findDropInFiles finds and returns sorted paths to drop-in settings files.
// Returns nil if the drop-in directory doesn't exist (not an error).
func (ss *SettingsSource) findDropInFiles() ([]string, error) {
	if _, err := os.Stat(ss.DropInDir); os.IsNotExist(err) {
		return nil, nil
	}

	entries, err := os.ReadDir(ss.DropInDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read drop-in directory %s: %w", ss.DropInDir, err)
	}

	var filenames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".toml") {
			filenames = append(filenames, filepath.Join(ss.DropInDir, entry.Name()))
		}
	}

	// Sort lexicographically
	sort.Strings(filenames)

	return filenames, nil
}

// parseDropInFiles loads .toml files.
func (ss *SettingsSource) parseDropInFiles() ([]settingsDTO, error) {
	paths, err := ss.findDropInFiles()
	if err != nil {
		return nil, err
	}

	var dtos []settingsDTO
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		dto, err := parseSettingsDTO(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		dtos = append(dtos, dto)
	}

	return dtos, nil
}
