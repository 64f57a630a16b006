// Package bundle holds the configuration resources compiled into layerconf.
package bundle

import (
	"embed"
	"io/fs"
)

//go:embed all:resources
var resources embed.FS

// FS is the bundled resource tree. Names are relative to the bundle root,
// such as ".configuration" or ".properties".
var FS fs.FS = mustSub(resources, "resources")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
