// Package pipeline orchestrates the five stages over one source file:
// parse, symbol table, normalization, analysis, then the fork into the
// static file and the instrumented tree.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"gopkg.in/yaml.v3"

	"github.com/viant/aardwolf/analysis"
	"github.com/viant/aardwolf/ids"
	"github.com/viant/aardwolf/instrumenter"
	"github.com/viant/aardwolf/langast"
	"github.com/viant/aardwolf/normalizer"
	"github.com/viant/aardwolf/pyfront"
	"github.com/viant/aardwolf/repository"
	"github.com/viant/aardwolf/staticfile"
	"github.com/viant/aardwolf/symbols"
)

// Manifest records what one pipeline run produced, so an embedding
// evaluator can bind the runtime handle and a trace consumer can
// correlate file ids back to sources.
type Manifest struct {
	Source      string              `yaml:"source"`
	FileID      uint64              `yaml:"fileId"`
	StaticFile  string              `yaml:"staticFile"`
	RuntimeName string              `yaml:"runtimeName"`
	Project     *repository.Project `yaml:"project,omitempty"`
}

// Result is the executable artifact of a run: the instrumented tree,
// ready to evaluate in a host environment prepared with the runtime
// symbols, plus the run manifest.
type Result struct {
	Module   *langast.Module
	Analysis *analysis.Result
	Manifest *Manifest
}

// Processor runs the pipeline. The zero value is not usable; call New.
type Processor struct {
	fs       afs.Service
	parser   *pyfront.Parser
	static   *staticfile.Writer
	detector *repository.Detector
}

// New creates a Processor.
func New() *Processor {
	return &Processor{
		fs:       afs.New(),
		parser:   pyfront.NewParser(),
		static:   staticfile.New(),
		detector: repository.New(),
	}
}

// ProcessFile runs the full pipeline over the file at path, writing the
// static artifact into outdir. An empty outdir means the file's own
// directory.
func (p *Processor) ProcessFile(ctx context.Context, path, outdir string) (*Result, error) {
	src, err := p.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if outdir == "" {
		outdir = filepath.Dir(path)
	}
	return p.process(ctx, src, path, outdir, ids.FileID(path))
}

// ProcessSource runs the pipeline over in-memory source. The synthetic
// filename scopes statement ids; distinct filenames get distinct file
// ids even without a backing file.
func (p *Processor) ProcessSource(ctx context.Context, src []byte, filename, outdir string) (*Result, error) {
	if outdir == "" {
		outdir = "."
	}
	return p.process(ctx, src, filename, outdir, ids.FileID(filename))
}

func (p *Processor) process(ctx context.Context, src []byte, filename, outdir string, fileID uint64) (*Result, error) {
	mod, err := p.parser.ParseSource(src, filename)
	if err != nil {
		return nil, err
	}

	table := symbols.Build(mod)
	normalizer.Normalize(mod)
	res := analysis.Analyze(mod, table, fileID)

	staticDest, err := p.static.Write(ctx, res, filename, outdir)
	if err != nil {
		return nil, err
	}

	if err := instrumenter.Instrument(mod, res); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		Source:      filename,
		FileID:      fileID,
		StaticFile:  staticDest,
		RuntimeName: instrumenter.RuntimeName,
	}
	if project, err := p.detector.Detect(filename); err == nil {
		manifest.Project = project
	}

	return &Result{Module: mod, Analysis: res, Manifest: manifest}, nil
}

// WriteManifest stores the run manifest as YAML next to the static
// artifact.
func (p *Processor) WriteManifest(ctx context.Context, m *Manifest, outdir string) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(outdir, filepath.Base(m.Source)+".manifest.yaml")
	if err := p.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write manifest %s: %w", dest, err)
	}
	return dest, nil
}
