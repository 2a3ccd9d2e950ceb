package metrics

import (
	"fmt"
	"github.com/packagewjx/cacheflow/internal/chart"
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/packagewjx/cacheflow/internal/output"
	"path/filepath"
	"sort"
)

var rowHeader = []string{"proc", "app", "l1_kb", "run_path", "simInsts", "numCycles", "ipc", "il1_miss_rate",
	"dl1_miss_rate", "l2_miss_rate", "branch_cond_incorrect", "branch_cond_predicted", "branch_mispred_rate",
	"commit_branch_mispredicts", "btb_hit_ratio"}

var summaryHeader = []string{"proc", "app", "best_l1_by_ipc_kb", "best_ipc", "best_l1_by_cycles_kb", "min_cycles",
	"plateau_1pct_l1_kb", "plateau_1pct_threshold_ipc"}

func RowTable(rows []Row) (*output.Table, error) {
	t := output.NewTable(rowHeader...)
	for _, r := range rows {
		err := t.Append(r.Proc, r.App, output.Int(r.L1KB), r.RunPath,
			output.Float(r.SimInsts), output.Float(r.NumCycles), output.Float(r.IPC),
			output.Float(r.IL1MissRate), output.Float(r.DL1MissRate), output.Float(r.L2MissRate),
			output.Float(r.CondIncorrect), output.Float(r.CondPredicted), output.Float(r.BranchMispredRate),
			output.Float(r.CommitMispredicts), output.Float(r.BTBHitRatio))
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func sizeOrNaN(kb int) string {
	if kb < 0 {
		return "nan"
	}
	return output.Int(kb)
}

func SummaryTable(summaries []Summary) (*output.Table, error) {
	t := output.NewTable(summaryHeader...)
	for _, s := range summaries {
		err := t.Append(s.Proc, s.App, output.Int(s.BestL1ByIPC), output.Float(s.BestIPC),
			sizeOrNaN(s.BestL1ByCycles), output.Float(s.MinCycles), output.Int(s.PlateauL1),
			output.Float(s.PlateauThreshold))
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func series(label string, rows []Row, scale float64, value func(r *Row) float64) chart.Series {
	s := chart.Series{Label: label, Points: make([]chart.Point, len(rows))}
	for i := range rows {
		s.Points[i] = chart.Point{X: float64(rows[i].L1KB), Y: value(&rows[i]) * scale}
	}
	return s
}

// Charts 每个应用生成IPC、周期数、缺失率与分支预测错误率四张图，键为文件名
func Charts(proc string, apps []string, rows []Row) map[string]*chart.LineChart {
	res := make(map[string]*chart.LineChart)
	for _, app := range apps {
		var appRows []Row
		for _, r := range rows {
			if r.App == app && r.Proc == proc {
				appRows = append(appRows, r)
			}
		}
		if len(appRows) == 0 {
			continue
		}
		group := proc + "_" + app
		title := fmt.Sprintf("%s %s", proc, app)
		xLabel := "L1 size (kB, I-L1 = D-L1)"
		res[chart.FileName("metrics", group, "ipc", "l1")] = &chart.LineChart{
			Title:  title + ": IPC vs L1 size",
			XLabel: xLabel,
			YLabel: "IPC",
			Series: []chart.Series{series("IPC", appRows, 1, func(r *Row) float64 { return r.IPC })},
		}
		res[chart.FileName("metrics", group, "cycles", "l1")] = &chart.LineChart{
			Title:  title + ": cycles vs L1 size",
			XLabel: xLabel,
			YLabel: "numCycles",
			Series: []chart.Series{series("numCycles", appRows, 1, func(r *Row) float64 { return r.NumCycles })},
		}
		res[chart.FileName("metrics", group, "miss_rates", "l1")] = &chart.LineChart{
			Title:  title + ": miss rates vs L1 size",
			XLabel: xLabel,
			YLabel: "Miss rate (%)",
			Series: []chart.Series{
				series("I-L1", appRows, 100, func(r *Row) float64 { return r.IL1MissRate }),
				series("D-L1", appRows, 100, func(r *Row) float64 { return r.DL1MissRate }),
				series("L2", appRows, 100, func(r *Row) float64 { return r.L2MissRate }),
			},
		}
		res[chart.FileName("metrics", group, "branch_mispred", "l1")] = &chart.LineChart{
			Title:  title + ": branch misprediction vs L1 size",
			XLabel: xLabel,
			YLabel: "Conditional mispredict rate (%)",
			Series: []chart.Series{
				series("condIncorrect / condPredicted", appRows, 100,
					func(r *Row) float64 { return r.BranchMispredRate }),
			},
		}
	}
	return res
}

const paramsTemplate = `{{.Proc}} gem5 sweep parameters
{{range .Notes}}- {{.}}
{{end}}- L1 block: {{.L1BlockBytes}}B, assoc={{.L1Assoc}}
- L1 sizes: {{range $i, $kb := .Sizes}}{{if $i}}, {{end}}{{$kb}}kB{{end}}
- Applications: {{range $i, $app := .Apps}}{{if $i}}, {{end}}{{$app}}{{end}}
- Runs base: {{.RunsBase}}
- Plateau tolerance: {{.Tolerance}}
`

type paramsData struct {
	Proc         string
	Notes        []string
	L1BlockBytes int
	L1Assoc      int
	Sizes        []int
	Apps         []string
	RunsBase     string
	Tolerance    float64
}

func Params(proc *core.ProcessorConfig, apps []string, runsBase string, tolerance float64) ([]byte, error) {
	return output.RenderText(paramsTemplate, &paramsData{
		Proc:         proc.Name,
		Notes:        proc.Notes,
		L1BlockBytes: proc.L1BlockBytes,
		L1Assoc:      proc.L1Assoc,
		Sizes:        proc.L1DomainKB,
		Apps:         apps,
		RunsBase:     runsBase,
		Tolerance:    tolerance,
	})
}

// Paths 指标流程的输出位置
type Paths struct {
	RunsBase   string
	OutCSV     string
	SummaryCSV string
	FiguresDir string
	ParamsTxt  string
}

// Build 完成一个处理器的全部计算，返回待写出的文件。出错时没有任何文件写出。
func Build(config *core.Config, proc *core.ProcessorConfig, paths *Paths) (*output.Batch, []Summary, error) {
	rows, err := Collect(paths.RunsBase, proc, config.Apps, config.Stats)
	if err != nil {
		return nil, nil, err
	}
	summaries := Summarize(rows, config.Summary.PlateauTolerance)

	batch := output.NewBatch()
	rowTable, err := RowTable(rows)
	if err != nil {
		return nil, nil, err
	}
	if err = batch.AddTable(paths.OutCSV, rowTable); err != nil {
		return nil, nil, err
	}
	summaryTable, err := SummaryTable(summaries)
	if err != nil {
		return nil, nil, err
	}
	if err = batch.AddTable(paths.SummaryCSV, summaryTable); err != nil {
		return nil, nil, err
	}
	params, err := Params(proc, config.Apps, paths.RunsBase, config.Summary.PlateauTolerance)
	if err != nil {
		return nil, nil, err
	}
	batch.Add(paths.ParamsTxt, params)
	if paths.FiguresDir != "" {
		charts := Charts(proc.Name, config.Apps, rows)
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
	return batch, summaries, nil
}
