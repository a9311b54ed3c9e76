package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/collector"
	"github.com/greg-randall/townnews/internal/config"
	"github.com/greg-randall/townnews/internal/pipeline"
	"github.com/greg-randall/townnews/internal/summary"
)

type fakeApp struct {
	cfg        config.Config
	collectErr error
	targets    []collector.Target
	batches    []string
	closed     int
}

func (f *fakeApp) Close()                   { f.closed++ }
func (f *fakeApp) GetLogger() *zap.Logger   { return zap.NewNop() }
func (f *fakeApp) GetConfig() config.Config { return f.cfg }

func (f *fakeApp) Collect(_ context.Context, targets []collector.Target) (pipeline.CollectResult, error) {
	f.targets = targets
	if f.collectErr != nil {
		return pipeline.CollectResult{}, f.collectErr
	}
	return pipeline.CollectResult{
		Batch:       "2024-01-01/1704067200",
		SummaryPath: "2024-01-01/1704067200/_collection_summary.json",
		Summary:     &summary.CollectionSummary{},
	}, nil
}

func (f *fakeApp) Normalize(_ context.Context, batch string) (pipeline.NormalizeResult, error) {
	f.batches = append(f.batches, batch)
	return pipeline.NormalizeResult{}, nil
}

// withFakeApp swaps the factory for the duration of a test. Tests using it
// must not run in parallel.
func withFakeApp(t *testing.T, fake *fakeApp) {
	t.Helper()
	orig := newApp
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
		fake.cfg = cfg
		return fake, nil
	}
	t.Cleanup(func() { newApp = orig })
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&discard{})
	root.SetErr(&discard{})
	return root.ExecuteContext(context.Background())
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }

func TestCollectUsesDomainsFlag(t *testing.T) {
	dir := t.TempDir()
	domains := writeFile(t, dir, "domains.txt", "# sites\nexample.com\n\n  other.org  \n")
	cfgPath := writeFile(t, dir, "config.yaml", "storage:\n  provider: memory\n")

	fake := &fakeApp{}
	withFakeApp(t, fake)

	require.NoError(t, execute(t, "--config", cfgPath, "collect", "--domains", domains))

	require.Len(t, fake.targets, 2)
	assert.Equal(t, "example.com", fake.targets[0].Domain)
	assert.Equal(t, "https://other.org/search/?l=100&f=json", fake.targets[1].URL)
	assert.Empty(t, fake.batches)
	assert.Equal(t, 1, fake.closed)
}

func TestCollectFallsBackToConfiguredDomainsFile(t *testing.T) {
	dir := t.TempDir()
	domains := writeFile(t, dir, "sites.txt", "example.com\n")
	cfgPath := writeFile(t, dir, "config.yaml", "collect:\n  domains_file: "+domains+"\n")

	fake := &fakeApp{}
	withFakeApp(t, fake)

	require.NoError(t, execute(t, "--config", cfgPath, "collect"))
	require.Len(t, fake.targets, 1)
}

func TestCollectMissingDomainsFile(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)

	err := execute(t, "collect", "--domains", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load domains")
	assert.Nil(t, fake.targets)
}

func TestNormalizePassesBatch(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)

	require.NoError(t, execute(t, "normalize", "--batch", "2024-01-01/1704067200"))
	require.NoError(t, execute(t, "normalize"))

	assert.Equal(t, []string{"2024-01-01/1704067200", ""}, fake.batches)
}

func TestRunNormalizesCollectedBatch(t *testing.T) {
	domains := writeFile(t, t.TempDir(), "domains.txt", "example.com\n")
	fake := &fakeApp{}
	withFakeApp(t, fake)

	require.NoError(t, execute(t, "run", "--domains", domains))
	assert.Equal(t, []string{"2024-01-01/1704067200"}, fake.batches)
}

func TestRunStopsWhenCollectionFails(t *testing.T) {
	domains := writeFile(t, t.TempDir(), "domains.txt", "example.com\n")
	fake := &fakeApp{collectErr: errors.New("launch browser: no chrome")}
	withFakeApp(t, fake)

	err := execute(t, "run", "--domains", domains)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chrome")
	assert.Empty(t, fake.batches)
}

func TestFactoryErrorIsReported(t *testing.T) {
	orig := newApp
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) {
		return nil, errors.New("bucket missing")
	}
	t.Cleanup(func() { newApp = orig })

	err := execute(t, "normalize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize services")
}

func TestInvalidConfigIsReported(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", "browser:\n  engine: lynx\n")
	fake := &fakeApp{}
	withFakeApp(t, fake)

	err := execute(t, "--config", cfgPath, "normalize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.engine")
}
