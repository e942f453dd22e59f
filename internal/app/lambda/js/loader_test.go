package js

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const momentumModule = `
module.exports = {
  metadata: {
    name: "Momentum",
    displayName: "Momentum",
    description: "Buys strength",
    version: "1.0.0",
    author: "desk",
    tags: ["trend"],
    config: [
      { name: "lookback", type: "number", default: 20, description: "bars" }
    ]
  },
  create: function(env) {
    return {
      start: function(config) { return true; },
      onTrade: function(trades) {}
    };
  }
};
`

func writeModule(t *testing.T, dir, filename, source string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o600))
	return path
}

func newTestLoader(t *testing.T) (*Loader, string) {
	t.Helper()
	dir := t.TempDir()
	loader, err := NewLoader(dir, nil)
	require.NoError(t, err)
	return loader, dir
}

func TestNewLoaderRequiresRoot(t *testing.T) {
	_, err := NewLoader("  ", nil)
	require.Error(t, err)
}

func TestLoaderRefreshLoadsModules(t *testing.T) {
	loader, dir := newTestLoader(t)
	writeModule(t, dir, "momentum.js", momentumModule)
	writeModule(t, dir, "README.md", "not a module")

	require.NoError(t, loader.Refresh(context.Background()))

	require.Equal(t, []string{"Momentum"}, loader.Names())
	list := loader.List()
	require.Len(t, list, 1)
	require.Equal(t, "momentum.js", list[0].File)
	require.Len(t, list[0].Hash, 64)
	require.Equal(t, "desk", list[0].Metadata.Author)

	module, err := loader.Get("MOMENTUM")
	require.NoError(t, err)
	require.Equal(t, "Momentum", module.Name)

	_, err = loader.Get("missing")
	require.ErrorIs(t, err, ErrModuleNotFound)
}

func TestLoaderRefreshSkipsRejectedModules(t *testing.T) {
	loader, dir := newTestLoader(t)
	writeModule(t, dir, "a_good.js", momentumModule)
	writeModule(t, dir, "b_syntax.js", "module.exports = {")
	writeModule(t, dir, "c_nometa.js", "module.exports = { create: function() { return {}; } };")
	writeModule(t, dir, "d_throws.js", "throw new Error('nope');")
	writeModule(t, dir, "e_duplicate.js", momentumModule)

	require.NoError(t, loader.Refresh(context.Background()))
	require.Equal(t, []string{"Momentum"}, loader.Names())

	module, err := loader.Get("momentum")
	require.NoError(t, err)
	require.Equal(t, "a_good.js", module.Filename)
}

func TestLoaderRefreshReplacesCatalog(t *testing.T) {
	loader, dir := newTestLoader(t)
	path := writeModule(t, dir, "momentum.js", momentumModule)
	require.NoError(t, loader.Refresh(context.Background()))
	require.Len(t, loader.Names(), 1)

	require.NoError(t, os.Remove(path))
	require.NoError(t, loader.Refresh(context.Background()))
	require.Empty(t, loader.Names())
}

func TestLoaderRefreshHonoursCancellation(t *testing.T) {
	loader, _ := newTestLoader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, loader.Refresh(ctx), context.Canceled)
}

func TestCompileSyntaxErrorProducesDiagnostic(t *testing.T) {
	_, err := compileSource("broken.js", "broken.js", []byte("module.exports = {\n  metadata: ,\n};"), 0)
	require.Error(t, err)

	diagErr, ok := AsDiagnosticError(err)
	require.True(t, ok)
	diags := diagErr.Diagnostics()
	require.NotEmpty(t, diags)
	require.Equal(t, DiagnosticStageCompile, diags[0].Stage)
	require.NotEmpty(t, diags[0].Message)
}

func TestCompileExecuteErrorProducesDiagnostic(t *testing.T) {
	_, err := compileSource("throws.js", "throws.js", []byte("throw new Error('bad init');"), 0)
	diagErr, ok := AsDiagnosticError(err)
	require.True(t, ok)
	require.Equal(t, DiagnosticStageExecute, diagErr.Diagnostics()[0].Stage)
	require.Contains(t, diagErr.Diagnostics()[0].Message, "bad init")
}

func TestCompileValidationDiagnostics(t *testing.T) {
	source := `module.exports = {
  metadata: { name: "has space", config: [{ name: "", type: "" }] },
  create: function() { return {}; }
};`
	_, err := compileSource("invalid.js", "invalid.js", []byte(source), 0)
	diagErr, ok := AsDiagnosticError(err)
	require.True(t, ok)

	hints := make([]string, 0)
	for _, d := range diagErr.Diagnostics() {
		require.Equal(t, DiagnosticStageValidation, d.Stage)
		hints = append(hints, d.Hint)
	}
	require.ElementsMatch(t, []string{"metadata.name", "metadata.config[0].name", "metadata.config[0].type"}, hints)
}

func TestCompileRequiresCreateFunction(t *testing.T) {
	source := `module.exports = { metadata: { name: "x" }, create: 42 };`
	_, err := compileSource("x.js", "x.js", []byte(source), 0)
	diagErr, ok := AsDiagnosticError(err)
	require.True(t, ok)
	require.Equal(t, "module.exports.create", diagErr.Diagnostics()[0].Hint)
}

func TestMetadataConfigSchemaObjectIsSerialised(t *testing.T) {
	source := `module.exports = {
  metadata: {
    name: "Schema",
    configSchema: { title: "Schema", properties: { size: { type: "number", value: 1 } } }
  },
  create: function() { return {}; }
};`
	module, err := compileSource("schema.js", "schema.js", []byte(source), 0)
	require.NoError(t, err)
	require.JSONEq(t, `{"title":"Schema","properties":{"size":{"type":"number","value":1}}}`, module.Metadata.ConfigSchema)
	require.Equal(t, module.Metadata.ConfigSchema, module.Metadata.Info().ConfigSchema)
}

func TestMetadataSchemaGeneratedFromConfigFields(t *testing.T) {
	module, err := compileSource("momentum.js", "momentum.js", []byte(momentumModule), 0)
	require.NoError(t, err)

	info := module.Metadata.Info()
	require.Equal(t, "Momentum", info.DisplayName)
	require.Contains(t, info.ConfigSchema, `"lookback"`)
	require.Equal(t, []string{"trend"}, info.Tags)
}

func TestValidateMetadataDisplayNameLength(t *testing.T) {
	long := make([]rune, maxDisplayNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	issues := ValidateMetadata(Metadata{Name: "ok", DisplayName: string(long), ConfigSchema: "{"})
	require.Len(t, issues, 2)
	require.Equal(t, "metadata.displayName", issues[0].Path)
	require.Equal(t, "metadata.configSchema", issues[1].Path)
}
