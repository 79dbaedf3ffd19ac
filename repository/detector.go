// Package repository identifies the project a source file under
// analysis belongs to: the root directory, the project kind, and the
// path of the file relative to that root. The pipeline records this in
// the run manifest so trace consumers can resolve source paths without
// replaying the analysis machine's filesystem layout.
package repository

import (
	"context"
	"os"
	"path/filepath"

	"github.com/viant/afs"
	"golang.org/x/mod/modfile"
)

// Project describes the detected project root for an analyzed file.
type Project struct {
	Name         string `yaml:"name,omitempty"`
	Type         string `yaml:"type"`
	RootPath     string `yaml:"rootPath"`
	RelativePath string `yaml:"relativePath"`
}

// Detector identifies project root folders by marker files.
type Detector struct {
	fs      afs.Service
	markers map[string]string
}

// New creates a Detector covering the project kinds the pipeline
// encounters: the scripted sources under analysis plus the manifests of
// the host repositories they commonly live in.
func New() *Detector {
	return &Detector{
		fs: afs.New(),
		markers: map[string]string{
			"pyproject.toml":   "python",
			"setup.py":         "python",
			"requirements.txt": "python",
			"go.mod":           "go",
			"package.json":     "javascript",
			"pom.xml":          "java",
			".git":             "unknown",
		},
	}
}

// Detect walks up from filePath looking for a project marker and
// returns the detected project. A file with no marker above it gets a
// project rooted at its own directory.
func (d *Detector) Detect(filePath string) (*Project, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}

	startDir := absPath
	if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
		startDir = filepath.Dir(absPath)
	}

	project := &Project{Type: "unknown", RootPath: startDir}
	for dir := startDir; ; dir = filepath.Dir(dir) {
		if marker, kind := d.findMarker(dir); marker != "" {
			project.RootPath = dir
			project.Type = kind
			project.Name = d.projectName(dir, marker)
			break
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}

	rel, err := filepath.Rel(project.RootPath, absPath)
	if err != nil {
		rel = filepath.Base(absPath)
	}
	project.RelativePath = filepath.ToSlash(rel)
	return project, nil
}

func (d *Detector) findMarker(dir string) (marker, kind string) {
	for name, k := range d.markers {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			// Prefer a language manifest over the bare VCS marker.
			if marker == "" || kind == "unknown" {
				marker, kind = name, k
			}
		}
	}
	return marker, kind
}

// projectName extracts a human name from the marker manifest where the
// format supports one: go.mod module paths are parsed properly, other
// kinds fall back to the directory name.
func (d *Detector) projectName(dir, marker string) string {
	if marker == "go.mod" {
		path := filepath.Join(dir, marker)
		if content, _ := d.fs.DownloadWithURL(context.Background(), path); len(content) > 0 {
			if mf, err := modfile.Parse(path, content, nil); err == nil && mf.Module != nil {
				return mf.Module.Mod.Path
			}
		}
	}
	return filepath.Base(dir)
}
