// Package conf implements the bootstrap settings file of layerconf, with
// drop-in directory support.
//
// # Usage
//
// The global Configuration variable is automatically loaded at package initialization:
//
//	import "github.com/redhatinsights/layerconf/internal/conf"
//
//	func main() {
//	    fmt.Println(conf.Configuration.LogLevel)
//	}
//
// For custom settings loading (e.g., testing), use SettingsSource:
//
//	ss := &conf.SettingsSource{
//	    Path:      "/custom/path/config.toml",
//	    DropInDir: "/custom/path/config.toml.d",
//	}
//	settings, err := ss.Read()
//
// # Load Order
//
// Settings are loaded and applied in three layers:
//
//  1. Embedded defaults (default.toml)
//  2. Main settings file: /etc/layerconf/config.toml
//  3. Drop-in files: /etc/layerconf/config.toml.d/*.toml, in lexicographic order
//
// Scalar keys such as log-level are replaced by later layers. List keys
// (ui-names, db-names, variants, properties, config-folders) accumulate.
//
// # Internal Architecture
//
// The implementation uses a DTO (Data Transfer Object) pattern with clear
// separation of concerns:
//
//   - settingsDTO: internal struct with pointer fields for TOML parsing.
//     Pointers allow distinguishing "not set" (nil) from "set to zero value".
//
//   - Settings: public struct with value fields. Has Update() method
//     to apply DTO values and Apply() to feed the startup parameters.
//
//   - SettingsSource: orchestrates loading from multiple sources and manages
//     their merging.
//
//   - parseSettingsDTO: function that parses TOML string into settingsDTO.
//     Separate from loading for clean separation of I/O and parsing.
package conf
