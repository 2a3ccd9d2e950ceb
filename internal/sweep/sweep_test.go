package sweep

import (
	"context"
	"fmt"
	"github.com/packagewjx/cacheflow/internal/cacti"
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/packagewjx/cacheflow/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner 读取生成的配置，按大小给出确定的面积
type fakeRunner struct {
	binary    string
	calls     []string
	assocSkew int
	failOn    string
}

func (f *fakeRunner) BinaryPath() string {
	return f.binary
}

func (f *fakeRunner) Run(ctx context.Context, cfgPath, reportPath string) error {
	f.calls = append(f.calls, filepath.Base(cfgPath))
	if f.failOn != "" && strings.Contains(cfgPath, f.failOn) {
		return errors.Wrap(cacti.ErrToolFailed, "exit status 1")
	}
	data, err := ioutil.ReadFile(cfgPath)
	if err != nil {
		return err
	}
	s, err := cacti.ReadSettings(string(data))
	if err != nil {
		return err
	}
	report := fmt.Sprintf("Cache Parameters:\n"+
		"    Total cache size (bytes): %d\n"+
		"    Associativity: %d\n"+
		"    Block size (bytes): %d\n"+
		"    Technology size (nm): %g\n"+
		"    Cache height x width (mm): %g x 0.5\n",
		s.SizeBytes, s.Assoc+f.assocSkew, s.BlockBytes, s.TechNM, float64(s.SizeBytes)/1024*0.01)
	return ioutil.WriteFile(reportPath, []byte(report), 0644)
}

func newTestConfig(t *testing.T) (*Config, *fakeRunner, func()) {
	dir, err := ioutil.TempDir("", "sweep")
	require.NoError(t, err)
	binary := filepath.Join(dir, "cacti")
	require.NoError(t, ioutil.WriteFile(binary, nil, 0755))
	processors := core.DefaultProcessors()
	processors[0].L1SweepKB = []int{1, 2}
	processors[0].L1DomainKB = []int{1, 2}
	processors[1].L1SweepKB = []int{8}
	processors[1].L1DomainKB = []int{8}
	config := &Config{
		CactiDir:   test.DataFile("cacti"),
		WorkDir:    dir,
		Processors: processors,
		Cacti:      core.RootConfig.Cacti,
	}
	return config, &fakeRunner{binary: binary}, func() { _ = os.RemoveAll(dir) }
}

func TestNormalize(t *testing.T) {
	for _, area := range []float64{0, 0.0123, 1, 3.75, 1234.5678} {
		assert.Equal(t, area*math.Pow(28.0/32.0, 2), Normalize(area, 32, 28))
		assert.Equal(t, area*0.765625, Normalize(area, 32, 28))
	}
	assert.Equal(t, 4.0, Normalize(1, 32, 64))
}

func TestRun(t *testing.T) {
	config, runner, cleanup := newTestConfig(t)
	defer cleanup()

	res, err := New(config, runner).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a7_L2_512KB.cfg", "a15_L2_512KB.cfg",
		"a7_L1_1KB.cfg", "a7_L1_2KB.cfg", "a15_L1_8KB.cfg"}, runner.calls)

	l2 := 512 * 0.01 * 0.5
	assert.InDelta(t, l2, res.L2Area["A7"], 1e-12)
	assert.InDelta(t, l2, res.L2Area["A15"], 1e-12)

	require.Len(t, res.Rows, 3)
	// 按处理器名排序，"A15" < "A7"
	assert.Equal(t, "A15", res.Rows[0].Proc)
	assert.Equal(t, 8, res.Rows[0].L1KB)
	assert.Equal(t, "A7", res.Rows[1].Proc)
	assert.Equal(t, 1, res.Rows[1].L1KB)
	assert.Equal(t, 2, res.Rows[2].L1KB)

	row := res.Rows[0]
	single := 8 * 0.01 * 0.5
	assert.InDelta(t, single, row.L1Single, 1e-9)
	assert.InDelta(t, 2*single, row.L1Total, 1e-9)
	assert.InDelta(t, 2*single*0.765625, row.L1TotalNorm, 1e-9)
	assert.InDelta(t, l2*0.765625, row.L2Norm, 1e-9)
	assert.Equal(t, 1.928552447, row.CoreNoL1Norm)
	assert.InDelta(t, 1.928552447+l2*0.765625+2*single*0.765625, row.TotalNorm, 1e-9)

	require.Len(t, res.Manifest.Entries, 5)
	entry := res.Manifest.Entries[4]
	assert.Equal(t, "A15", entry.Proc)
	assert.Equal(t, 8, entry.SizeKB)
	assert.Equal(t, "L1", entry.Level)
	assert.FileExists(t, entry.Config)
	assert.FileExists(t, entry.Output)

	cfg, err := ioutil.ReadFile(entry.Config)
	require.NoError(t, err)
	settings, err := cacti.ReadSettings(string(cfg))
	require.NoError(t, err)
	assert.Equal(t, 8192, settings.SizeBytes)
	assert.Equal(t, 64, settings.BlockBytes)

	out, err := res.Manifest.Marshal()
	require.NoError(t, err)
	back, err := ReadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, res.Manifest.Entries[0].Name, back.Entries[0].Name)
	assert.Contains(t, string(out), "areaMM2:")
}

func TestRunMismatch(t *testing.T) {
	config, runner, cleanup := newTestConfig(t)
	defer cleanup()
	runner.assocSkew = 1

	res, err := New(config, runner).Run(context.Background())
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Equal(t, cacti.ErrMismatch, errors.Cause(err))
	assert.Contains(t, err.Error(), "a7_L2_512KB.txt")
	assert.Len(t, runner.calls, 1)
}

func TestRunToolFailure(t *testing.T) {
	config, runner, cleanup := newTestConfig(t)
	defer cleanup()
	runner.failOn = "a7_L1_2KB"

	_, err := New(config, runner).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, cacti.ErrToolFailed, errors.Cause(err))
	assert.Len(t, runner.calls, 4)
}

func TestRunMissingInputs(t *testing.T) {
	config, runner, cleanup := newTestConfig(t)
	defer cleanup()
	runner.binary = filepath.Join(config.WorkDir, "no-such-cacti")
	config.Processors[1].Template = "cache_L1_missing.cfg"

	_, err := New(config, runner).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrMissingInput, errors.Cause(err))
	assert.Contains(t, err.Error(), "no-such-cacti")
	assert.Contains(t, err.Error(), "cache_L1_missing.cfg")
	assert.Empty(t, runner.calls)
}

func TestOutputs(t *testing.T) {
	config, runner, cleanup := newTestConfig(t)
	defer cleanup()
	res, err := New(config, runner).Run(context.Background())
	require.NoError(t, err)

	outDir := filepath.Join(config.WorkDir, "out")
	batch, err := res.Outputs(config, runner.binary, outDir, 6, 4)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, SummaryFile))
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, batch.Commit())

	csv, err := ioutil.ReadFile(filepath.Join(outDir, SummaryFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "proc,L1_kB,A_L1_single_32,A_L1_total_32,A_L1_total_28,A_L2_32,A_L2_28,"+
		"A_core_noL1_28,A_total_new_28", lines[0])
	assert.Equal(t, "A15,8,0.040000000,0.080000000,0.061250000,2.560000000,1.960000000,"+
		"1.928552447,3.949802447", lines[1])

	params, err := ioutil.ReadFile(filepath.Join(outDir, ParamsFile))
	require.NoError(t, err)
	assert.Contains(t, string(params), "[A15]\n")
	assert.Contains(t, string(params), "scale 0.765625")
	assert.Contains(t, string(params), "- L2 area: area_32 = 2.560000000 mm^2, area_28 = 1.960000000 mm^2\n")

	data, err := ioutil.ReadFile(filepath.Join(outDir, ManifestFile))
	require.NoError(t, err)
	manifest, err := ReadManifest(data)
	require.NoError(t, err)
	assert.Len(t, manifest.Entries, 5)

	assert.FileExists(t, filepath.Join(outDir, FiguresDir, "area_cores_l1_total_area_vs_l1.png"))
	assert.FileExists(t, filepath.Join(outDir, FiguresDir, "area_cores_total_area_vs_l1.png"))
	assert.Equal(t, "A_total_new_28", TotalColumn(28))
}
