package experiment

import (
	"context"
	"fmt"
	"github.com/packagewjx/cacheflow/internal/cacti"
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/packagewjx/cacheflow/internal/efficiency"
	"github.com/packagewjx/cacheflow/internal/metrics"
	"github.com/packagewjx/cacheflow/internal/output"
	"github.com/packagewjx/cacheflow/internal/sweep"
	"github.com/packagewjx/cacheflow/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// areaRunner 按配置中的大小生成CACTI报告
type areaRunner struct {
	binary string
}

func (r *areaRunner) BinaryPath() string {
	return r.binary
}

func (r *areaRunner) Run(ctx context.Context, cfgPath, reportPath string) error {
	data, err := ioutil.ReadFile(cfgPath)
	if err != nil {
		return err
	}
	s, err := cacti.ReadSettings(string(data))
	if err != nil {
		return err
	}
	report := fmt.Sprintf(`Cache Parameters:
    Total cache size (bytes): %d
    Block size (bytes): %d
    Associativity: %d
    Technology size (nm): %g
    Cache height x width (mm): %g x 0.25
`, s.SizeBytes, s.BlockBytes, s.Assoc, s.TechNM, float64(s.SizeBytes)/8192*0.1)
	return ioutil.WriteFile(reportPath, []byte(report), 0644)
}

func writeRun(t *testing.T, runsBase, app string, kb int, ipc float64) {
	dir := metrics.RunDir(runsBase, app, kb)
	require.NoError(t, os.MkdirAll(dir, 0755))
	stats := fmt.Sprintf("simInsts 1000000\nsystem.cpu.numCycles %d\nsystem.cpu.ipc %v\n",
		int(1000000/ipc), ipc)
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "stats.txt"), []byte(stats), 0644))
}

// TestPipelines 依次运行面积扫描、指标提取与效率计算，效率表读取前两个流程的输出
func TestPipelines(t *testing.T) {
	dir, err := ioutil.TempDir("", "experiment")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	config := *core.RootConfig
	a15, _ := core.RootConfig.Processor("A15")
	proc := *a15
	proc.L1SweepKB = []int{8, 16}
	proc.L1DomainKB = []int{8, 16}
	config.Processors = []core.ProcessorConfig{proc}
	require.NoError(t, config.Check())

	// 面积
	binary := filepath.Join(dir, "cacti")
	require.NoError(t, ioutil.WriteFile(binary, nil, 0755))
	areaOut := filepath.Join(dir, "area")
	sweepConfig := &sweep.Config{
		CactiDir:   test.DataFile("cacti"),
		WorkDir:    areaOut,
		Processors: config.Processors,
		Cacti:      config.Cacti,
	}
	res, err := sweep.New(sweepConfig, &areaRunner{binary: binary}).Run(context.Background())
	require.NoError(t, err)
	batch, err := res.Outputs(sweepConfig, binary, areaOut, 5, 3)
	require.NoError(t, err)
	require.NoError(t, batch.Commit())

	// 指标
	runsBase := filepath.Join(dir, "runs")
	for _, app := range config.Apps {
		writeRun(t, runsBase, app, 8, 0.5)
		writeRun(t, runsBase, app, 16, 0.625)
	}
	metricsPaths := &metrics.Paths{
		RunsBase:   runsBase,
		OutCSV:     filepath.Join(dir, "metrics", "a15_metrics.csv"),
		SummaryCSV: filepath.Join(dir, "metrics", "a15_summary.csv"),
		ParamsTxt:  filepath.Join(dir, "metrics", "a15_params.txt"),
	}
	batch, _, err = metrics.Build(&config, &config.Processors[0], metricsPaths)
	require.NoError(t, err)
	require.NoError(t, batch.Commit())

	// 效率
	effPaths := &efficiency.Paths{
		IPCCSV:    map[string]string{"A15": metricsPaths.OutCSV},
		AreaCSV:   filepath.Join(areaOut, sweep.SummaryFile),
		OutCSV:    filepath.Join(dir, "efficiency", "efficiency.csv"),
		BestCSV:   filepath.Join(dir, "efficiency", "best.csv"),
		ParamsTxt: filepath.Join(dir, "efficiency", "params.txt"),
	}
	batch, rows, err := efficiency.Build(&config, effPaths)
	require.NoError(t, err)
	require.NoError(t, batch.Commit())
	require.Len(t, rows, 4)

	areaTable, err := output.ReadTable(effPaths.AreaCSV)
	require.NoError(t, err)
	col, err := areaTable.Column(sweep.TotalColumn(28))
	require.NoError(t, err)
	area8, err := strconv.ParseFloat(areaTable.Rows[0][col], 64)
	require.NoError(t, err)
	assert.Equal(t, "blowfish", rows[0].App)
	assert.Equal(t, 8, rows[0].L1KB)
	assert.Equal(t, area8, rows[0].Area)
	assert.Equal(t, 0.5/area8, rows[0].Efficiency)

	best, err := output.ReadTable(effPaths.BestCSV)
	require.NoError(t, err)
	assert.Len(t, best.Rows, 2)
}
