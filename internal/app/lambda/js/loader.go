// Package js hosts algorithms written as JavaScript modules. Each module runs in
// its own goja VM driven by a dedicated goroutine.
package js

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/observability"
)

// Loader manages JavaScript algorithm modules sourced from a directory.
type Loader struct {
	mu     sync.RWMutex
	root   string
	logger observability.Logger
	byName map[string]*Module
}

// Module is a compiled script with its metadata.
type Module struct {
	Name     string
	Filename string
	Path     string
	Hash     string
	Metadata Metadata
	Program  *goja.Program
	Size     int64
}

// ModuleSummary exposes immutable module details.
type ModuleSummary struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Path     string   `json:"path"`
	Hash     string   `json:"hash"`
	Size     int64    `json:"size"`
	Metadata Metadata `json:"metadata"`
}

// NewLoader constructs a Loader rooted at root, creating the directory when absent.
func NewLoader(root string, logger observability.Logger) (*Loader, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, fmt.Errorf("algorithm loader: root directory required")
	}
	clean := filepath.Clean(trimmed)
	if err := os.MkdirAll(clean, 0o750); err != nil {
		return nil, fmt.Errorf("algorithm loader: ensure directory %q: %w", clean, err)
	}
	return &Loader{
		root:   clean,
		logger: observability.OrNop(logger),
		byName: make(map[string]*Module),
	}, nil
}

// Root returns the directory scanned by the loader.
func (l *Loader) Root() string {
	if l == nil {
		return ""
	}
	return l.root
}

// Refresh replaces the loaded modules with the scripts currently on disk.
// Modules that fail to compile, evaluate, or validate are logged with their
// diagnostics and skipped. Of two modules claiming the same name the first file
// in directory order wins.
func (l *Loader) Refresh(ctx context.Context) error {
	if l == nil {
		return fmt.Errorf("algorithm loader: nil receiver")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("algorithm loader: refresh canceled: %w", err)
	}

	entries, err := os.ReadDir(l.root)
	if err != nil {
		return fmt.Errorf("algorithm loader: read directory %q: %w", l.root, err)
	}

	next := make(map[string]*Module)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("algorithm loader: refresh canceled: %w", err)
		}
		if entry.IsDir() || !isJavaScriptFile(entry.Name()) {
			continue
		}
		fullPath := filepath.Join(l.root, entry.Name())
		module, err := compileModule(fullPath, entry)
		if err != nil {
			l.logRejected(fullPath, err)
			continue
		}
		key := strings.ToLower(module.Name)
		if existing, dup := next[key]; dup {
			l.logger.Warn("duplicate algorithm module name, keeping first",
				observability.F("name", module.Name),
				observability.F("kept", existing.Filename),
				observability.F("skipped", module.Filename))
			continue
		}
		next[key] = module
	}

	l.mu.Lock()
	l.byName = next
	l.mu.Unlock()

	l.logger.Info("algorithm modules loaded", observability.F("dir", l.root), observability.F("count", len(next)))
	return nil
}

func (l *Loader) logRejected(path string, err error) {
	fields := []observability.Field{observability.F("file", path), observability.Err(err)}
	if diagErr, ok := AsDiagnosticError(err); ok {
		fields = append(fields, observability.F("diagnostics", diagErr.Diagnostics()))
	}
	l.logger.Warn("algorithm module rejected", fields...)
}

// List returns the loaded module catalog ordered by name.
func (l *Loader) List() []ModuleSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]ModuleSummary, 0, len(l.byName))
	for _, module := range l.byName {
		out = append(out, module.summary())
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Get returns the compiled module answering to name, case-insensitively.
func (l *Loader) Get(name string) (*Module, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	module, ok := l.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrModuleNotFound
	}
	return module, nil
}

// Names lists the loaded module names.
func (l *Loader) Names() []string {
	summaries := l.List()
	out := make([]string, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, s.Name)
	}
	return out
}

// New instantiates the named module in a fresh VM.
func (l *Loader) New(name string) (algo.Algorithm, error) {
	module, err := l.Get(name)
	if err != nil {
		return nil, err
	}
	return NewAlgorithm(module)
}

func (m *Module) summary() ModuleSummary {
	return ModuleSummary{
		Name:     m.Name,
		File:     m.Filename,
		Path:     m.Path,
		Hash:     m.Hash,
		Size:     m.Size,
		Metadata: CloneMetadata(m.Metadata),
	}
}

func isJavaScriptFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".js") || strings.HasSuffix(lower, ".mjs")
}

func compileModule(fullPath string, entry fs.DirEntry) (*Module, error) {
	// #nosec G304 -- fullPath comes from os.ReadDir within the loader root.
	source, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("algorithm loader: read %q: %w", fullPath, err)
	}
	return compileSource(fullPath, entry.Name(), source, fileSize(entry))
}

func compileSource(path, filename string, source []byte, size int64) (*Module, error) {
	prog, err := goja.Compile(path, string(source), true)
	if err != nil {
		return nil, NewDiagnosticError(fmt.Sprintf("compile %s", filename), err, compileDiagnostic(err))
	}
	meta, err := extractMetadata(prog)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(source)
	return &Module{
		Name:     meta.Name,
		Filename: filename,
		Path:     path,
		Hash:     hex.EncodeToString(sum[:]),
		Metadata: meta,
		Program:  prog,
		Size:     size,
	}, nil
}

func extractMetadata(program *goja.Program) (Metadata, error) {
	rt := goja.New()
	exports, err := runModule(rt, program)
	if err != nil {
		return Metadata{}, NewDiagnosticError("module evaluation failed", err, executeDiagnostic(err))
	}
	if create := exports.Get("create"); create == nil || goja.IsUndefined(create) {
		return Metadata{}, NewDiagnosticError("create export missing", nil, Diagnostic{
			Stage:   DiagnosticStageValidation,
			Message: "create export missing",
			Hint:    "module.exports.create",
		})
	} else if _, ok := goja.AssertFunction(create); !ok {
		return Metadata{}, NewDiagnosticError("create export not callable", nil, Diagnostic{
			Stage:   DiagnosticStageValidation,
			Message: "create export must be a function",
			Hint:    "module.exports.create",
		})
	}

	raw := exports.Get("metadata")
	if raw == nil || goja.IsUndefined(raw) || goja.IsNull(raw) {
		return Metadata{}, NewDiagnosticError("metadata export missing", nil, Diagnostic{
			Stage:   DiagnosticStageValidation,
			Message: "metadata export missing",
			Hint:    "module.exports.metadata",
		})
	}
	var exported exportedMetadata
	if err := rt.ExportTo(raw, &exported); err != nil {
		return Metadata{}, NewDiagnosticError("metadata export invalid", err, Diagnostic{
			Stage:   DiagnosticStageValidation,
			Message: diagnosticMessage(err),
			Hint:    "module.exports.metadata",
		})
	}
	meta, err := exported.normalize()
	if err != nil {
		return Metadata{}, NewDiagnosticError("metadata export invalid", err, Diagnostic{
			Stage:   DiagnosticStageValidation,
			Message: diagnosticMessage(err),
			Hint:    "metadata.configSchema",
		})
	}
	if issues := ValidateMetadata(meta); len(issues) > 0 {
		return Metadata{}, NewDiagnosticError("metadata validation failed", nil, validationDiagnostics(issues)...)
	}
	return meta, nil
}

func runModule(rt *goja.Runtime, program *goja.Program) (*goja.Object, error) {
	rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	module := rt.NewObject()
	exports := rt.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}
	if err := rt.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}
	if err := rt.Set("module", module); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}
	if err := rt.Set("console", buildConsole(rt)); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}

	if _, err := rt.RunProgram(program); err != nil {
		return nil, fmt.Errorf("module run: %w", err)
	}

	value := module.Get("exports")
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, fmt.Errorf("module exports must be an object")
	}
	return value.ToObject(rt), nil
}

// buildConsole installs a silent console; scripts log through env.log.
func buildConsole(rt *goja.Runtime) *goja.Object {
	console := rt.NewObject()
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = console.Set("log", noop)
	_ = console.Set("error", noop)
	_ = console.Set("warn", noop)
	_ = console.Set("info", noop)
	return console
}

func fileSize(entry fs.DirEntry) int64 {
	info, err := entry.Info()
	if err != nil {
		return 0
	}
	return info.Size()
}
