package efficiency

import (
	"fmt"
	"github.com/packagewjx/cacheflow/internal/chart"
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/packagewjx/cacheflow/internal/output"
	"github.com/packagewjx/cacheflow/internal/sweep"
	"github.com/pkg/errors"
	"path/filepath"
	"sort"
	"strconv"
)

func nm(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func Header(targetNM float64) []string {
	return []string{"proc", "app", "l1_kb", "ipc", "area_total_" + nm(targetNM), "surf_eff_ipc_per_mm2"}
}

func BestHeader(targetNM float64) []string {
	return []string{"proc", "app", "best_l1_kb", "best_ipc", "best_area_total_" + nm(targetNM),
		"best_surf_eff_ipc_per_mm2"}
}

func fill(t *output.Table, rows []Row) (*output.Table, error) {
	for _, r := range rows {
		err := t.Append(r.Proc, r.App, output.Int(r.L1KB), output.Fixed(r.IPC, 6), output.Fixed(r.Area, 9),
			output.Fixed(r.Efficiency, 9))
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func Table(rows []Row, targetNM float64) (*output.Table, error) {
	return fill(output.NewTable(Header(targetNM)...), rows)
}

func BestTable(best []Row, targetNM float64) (*output.Table, error) {
	return fill(output.NewTable(BestHeader(targetNM)...), best)
}

// Charts 每个应用一张面积效率图，每个处理器一条线，键为文件名
func Charts(rows []Row, targetNM float64) map[string]*chart.LineChart {
	res := make(map[string]*chart.LineChart)
	for _, r := range rows {
		name := chart.FileName("efficiency", r.App, "se", "l1")
		c, ok := res[name]
		if !ok {
			c = &chart.LineChart{
				Title:  fmt.Sprintf("%s: surface efficiency vs L1 size @%snm", r.App, nm(targetNM)),
				XLabel: "L1 size (kB, I-L1 = D-L1)",
				YLabel: "IPC / mm^2",
			}
			res[name] = c
		}
		idx := -1
		for i := range c.Series {
			if c.Series[i].Label == r.Proc {
				idx = i
			}
		}
		if idx == -1 {
			c.Series = append(c.Series, chart.Series{Label: r.Proc})
			idx = len(c.Series) - 1
		}
		c.Series[idx].Points = append(c.Series[idx].Points, chart.Point{X: float64(r.L1KB), Y: r.Efficiency})
	}
	return res
}

const paramsTemplate = `Surface efficiency = IPC / total core area @{{.Target}}nm
- IPC inputs:{{range .IPCInputs}}
  - {{.}}{{end}}
- Area input: {{.AreaCSV}} (column {{.AreaColumn}})
- Applications: {{range $i, $app := .Apps}}{{if $i}}, {{end}}{{$app}}{{end}}
{{range .Processors}}- {{.Name}} L1 sizes: {{range $i, $kb := .L1DomainKB}}{{if $i}}, {{end}}{{$kb}}kB{{end}}
{{end}}- Joined rows: {{.Rows}}

Validation sample {{.Sample.Proc}}/{{.Sample.App}}/{{.Sample.L1KB}}kB:
  ipc = {{printf "%.6f" .SampleRow.IPC}}
  area = {{printf "%.9f" .SampleRow.Area}} mm^2
  eff = ipc / area = {{printf "%.9f" .SampleRow.Efficiency}} IPC/mm^2
`

type paramsData struct {
	Target     string
	IPCInputs  []string
	AreaCSV    string
	AreaColumn string
	Apps       []string
	Processors []core.ProcessorConfig
	Rows       int
	Sample     core.SampleConfig
	SampleRow  *Row
}

// Paths 效率流程的输入与输出位置，IPCCSV以处理器名为键
type Paths struct {
	IPCCSV     map[string]string
	AreaCSV    string
	OutCSV     string
	BestCSV    string
	FiguresDir string
	ParamsTxt  string
}

func (p *Paths) Inputs() []string {
	res := make([]string, 0, len(p.IPCCSV)+1)
	for _, proc := range sortedKeys(p.IPCCSV) {
		res = append(res, p.IPCCSV[proc])
	}
	return append(res, p.AreaCSV)
}

func sortedKeys(m map[string]string) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// Build 读取输入并完成全部计算，返回待写出的文件。任何错误都发生在写出之前。
func Build(config *core.Config, paths *Paths) (*output.Batch, []Row, error) {
	ipcTables := make(map[string]*output.Table)
	for _, proc := range sortedKeys(paths.IPCCSV) {
		t, err := output.ReadTable(paths.IPCCSV[proc])
		if err != nil {
			return nil, nil, err
		}
		ipcTables[proc] = t
	}
	areaTable, err := output.ReadTable(paths.AreaCSV)
	if err != nil {
		return nil, nil, err
	}
	rows, err := Join(ipcTables, areaTable, config)
	if err != nil {
		return nil, nil, err
	}
	sample := config.Efficiency.Sample
	sampleRow, ok := Find(rows, sample)
	if !ok {
		return nil, nil, errors.Errorf("验证样本 %s/%s/%dKB 不在连接结果中", sample.Proc, sample.App, sample.L1KB)
	}
	best := SummarizeBest(rows)
	target := config.Cacti.TargetNM

	batch := output.NewBatch()
	table, err := Table(rows, target)
	if err != nil {
		return nil, nil, err
	}
	if err = batch.AddTable(paths.OutCSV, table); err != nil {
		return nil, nil, err
	}
	bestTable, err := BestTable(best, target)
	if err != nil {
		return nil, nil, err
	}
	if err = batch.AddTable(paths.BestCSV, bestTable); err != nil {
		return nil, nil, err
	}

	var procs []core.ProcessorConfig
	for _, proc := range sortedKeys(paths.IPCCSV) {
		p, _ := config.Processor(proc)
		procs = append(procs, *p)
	}
	params, err := output.RenderText(paramsTemplate, &paramsData{
		Target:     nm(target),
		IPCInputs:  paths.Inputs()[:len(paths.IPCCSV)],
		AreaCSV:    paths.AreaCSV,
		AreaColumn: sweep.TotalColumn(target),
		Apps:       config.Apps,
		Processors: procs,
		Rows:       len(rows),
		Sample:     sample,
		SampleRow:  sampleRow,
	})
	if err != nil {
		return nil, nil, err
	}
	batch.Add(paths.ParamsTxt, params)

	if paths.FiguresDir != "" {
		charts := Charts(rows, target)
		names := make([]string, 0, len(charts))
		for name := range charts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			png, err := charts[name].Render(config.Chart.WidthInch, config.Chart.HeightInch)
			if err != nil {
				return nil, nil, err
			}
			batch.Add(filepath.Join(paths.FiguresDir, name), png)
		}
	}
	return batch, rows, nil
}
