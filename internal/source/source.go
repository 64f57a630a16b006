// Package source locates configuration documents across the bundled
// resources and the configuration folders of a host.
//
// # Precedence
//
// Documents are yielded in a fixed order: the bundled resource first, then
// every folder in registration order. Later documents take precedence when
// their contents are merged, earlier ones when they are parsed as rules.
//
// # Folder kinds
//
// A folder is "specific" when it is dedicated to this application (such as
// /etc/layerconf or ~/.layerconf). Shared folders such as the home directory
// itself are not; files there carry an application prefix so that
// ".configuration" becomes ".layerconf-configuration". Property files are
// only ever read from specific folders.
package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Folder is a directory searched for configuration documents.
type Folder struct {
	Path     string
	Specific bool
}

// Document is one existing configuration document.
type Document struct {
	// ID identifies the document in diagnostics.
	ID string
	// Path is the file system path, empty for bundled resources.
	Path    string
	ModTime time.Time
	Body    io.Reader
}

// Request selects the documents to walk.
type Request struct {
	// Name is the file name inside the bundle or a specific folder.
	Name string
	// SpecificOnly skips folders that are not application specific.
	SpecificOnly bool
}

// Provider yields configuration documents in precedence order.
type Provider interface {
	// Walk calls fn for every existing document matching req. Missing
	// documents are skipped; any other failure to read one is returned.
	Walk(req Request, fn func(Document) error) error
}

// FS is a Provider backed by an fs.FS bundle and a list of folders.
type FS struct {
	App     string
	Bundle  fs.FS
	Folders []Folder
}

// DefaultFolders returns the standard folder sequence for app: the system
// folder, the user's home and the working directory.
func DefaultFolders(app, home, cwd string) []Folder {
	folders := []Folder{{Path: filepath.Join("/etc", app), Specific: true}}
	if home != "" {
		folders = append(folders,
			Folder{Path: filepath.Join(home, "."+app), Specific: true},
			Folder{Path: home, Specific: false},
		)
	}
	if cwd != "" {
		folders = append(folders,
			Folder{Path: filepath.Join(cwd, "."+app), Specific: true},
			Folder{Path: cwd, Specific: false},
		)
	}
	return folders
}

// ExtraFolders returns the folders registered for an additional
// configuration directory. Both are treated as application specific.
func ExtraFolders(app, dir string) []Folder {
	return []Folder{
		{Path: filepath.Join(dir, "."+app), Specific: true},
		{Path: dir, Specific: true},
	}
}

// Walk implements Provider.
func (p *FS) Walk(req Request, fn func(Document) error) error {
	if p.Bundle != nil {
		if err := p.walkBundle(req.Name, fn); err != nil {
			return err
		}
	}
	for _, folder := range p.Folders {
		if req.SpecificOnly && !folder.Specific {
			continue
		}
		name := req.Name
		if !folder.Specific {
			name = p.sharedName(name)
		}
		if err := walkFile(filepath.Join(folder.Path, name), fn); err != nil {
			return err
		}
	}
	return nil
}

// sharedName prefixes name with the application so that it does not clash
// with other files in a shared folder.
func (p *FS) sharedName(name string) string {
	return "." + p.App + "-" + strings.TrimPrefix(name, ".")
}

func (p *FS) walkBundle(name string, fn func(Document) error) error {
	id := "bundle:" + name
	f, err := p.Bundle.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", id, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", id, err)
	}
	if info.IsDir() {
		return nil
	}
	return fn(Document{ID: id, ModTime: info.ModTime(), Body: f})
}

func walkFile(path string, fn func(Document) error) error {
	f, err := os.Open(path)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil
	}
	return fn(Document{ID: path, Path: path, ModTime: info.ModTime(), Body: f})
}

// isNotExist also treats a path whose parent is a regular file as missing.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
