package sweep

import (
	"github.com/packagewjx/cacheflow/internal/chart"
	"github.com/packagewjx/cacheflow/internal/output"
	"path/filepath"
	"strconv"
)

const (
	SummaryFile  = "area_summary.csv"
	ParamsFile   = "area_params.txt"
	ManifestFile = "manifest.yaml"
	FiguresDir   = "figures"
)

func nodeName(prefix string, nm float64) string {
	return prefix + "_" + strconv.FormatFloat(nm, 'f', -1, 64)
}

// TotalColumn 归一化后总面积的列名，效率计算按此列读取面积
func TotalColumn(targetNM float64) string {
	return nodeName("A_total_new", targetNM)
}

func Header(techNM, targetNM float64) []string {
	return []string{
		"proc",
		"L1_kB",
		nodeName("A_L1_single", techNM),
		nodeName("A_L1_total", techNM),
		nodeName("A_L1_total", targetNM),
		nodeName("A_L2", techNM),
		nodeName("A_L2", targetNM),
		nodeName("A_core_noL1", targetNM),
		TotalColumn(targetNM),
	}
}

func area(v float64) string {
	return output.Fixed(v, 9)
}

func (r *Result) Table() (*output.Table, error) {
	m := r.Manifest
	t := output.NewTable(Header(m.TechNM, m.TargetNM)...)
	for _, row := range r.Rows {
		err := t.Append(row.Proc, output.Int(row.L1KB), area(row.L1Single), area(row.L1Total),
			area(row.L1TotalNorm), area(row.L2), area(row.L2Norm), area(row.CoreNoL1Norm), area(row.TotalNorm))
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Charts L1总面积与核心总面积随L1大小的变化，每个处理器一条线
func (r *Result) Charts() map[string]*chart.LineChart {
	target := strconv.FormatFloat(r.Manifest.TargetNM, 'f', -1, 64)
	l1 := &chart.LineChart{
		Title:  "Total L1 area (I+D) vs L1 size @" + target + "nm",
		XLabel: "L1 size per cache (kB)",
		YLabel: "Area (mm^2)",
	}
	total := &chart.LineChart{
		Title:  "Core total area vs L1 size @" + target + "nm",
		XLabel: "L1 size per cache (kB)",
		YLabel: "Area (mm^2)",
	}
	var procs []string
	byProc := make(map[string][]Row)
	for _, row := range r.Rows {
		if _, ok := byProc[row.Proc]; !ok {
			procs = append(procs, row.Proc)
		}
		byProc[row.Proc] = append(byProc[row.Proc], row)
	}
	for _, proc := range procs {
		rows := byProc[proc]
		l1Series := chart.Series{Label: proc}
		totalSeries := chart.Series{Label: proc}
		for _, row := range rows {
			l1Series.Points = append(l1Series.Points, chart.Point{X: float64(row.L1KB), Y: row.L1TotalNorm})
			totalSeries.Points = append(totalSeries.Points, chart.Point{X: float64(row.L1KB), Y: row.TotalNorm})
		}
		l1.Series = append(l1.Series, l1Series)
		total.Series = append(total.Series, totalSeries)
	}
	return map[string]*chart.LineChart{
		chart.FileName("area", "cores", "l1_total_area", "l1"): l1,
		chart.FileName("area", "cores", "total_area", "l1"):    total,
	}
}

const paramsTemplate = `CACTI area sweep
- CACTI directory: {{.Manifest.CactiDir}}
- CACTI binary: {{.Binary}}
- Technology: {{.Manifest.TechNM}}nm, normalized to {{.Manifest.TargetNM}}nm (scale {{printf "%.6f" .Scale}})
- L1 banks per core: {{.Banks}} (I-L1 + D-L1)
{{range .Processors}}
[{{.Name}}]
- Template: {{.Template}}
- L1: block={{.L1BlockBytes}}B, assoc={{.L1Assoc}}, sizes={{range $i, $kb := .L1SweepKB}}{{if $i}}, {{end}}{{$kb}}kB{{end}}
- L2: {{.L2SizeKB}}kB, block={{.L2BlockBytes}}B, assoc={{.L2Assoc}} (fixed)
- L2 area: area_{{$.Manifest.TechNM}} = {{printf "%.9f" (index $.L2Area .Name)}} mm^2, area_{{$.Manifest.TargetNM}} = {{printf "%.9f" (index $.L2Norm .Name)}} mm^2
- Core area without L1 @{{$.Manifest.TargetNM}}nm: {{.CoreNoL1Area}} mm^2
{{end}}`

type paramsData struct {
	*Config
	Manifest *Manifest
	Binary   string
	Scale    float64
	Banks    int
	L2Area   map[string]float64
	L2Norm   map[string]float64
}

// Params 面积扫描的参数说明
func (r *Result) Params(config *Config, binary string) ([]byte, error) {
	l2Norm := make(map[string]float64, len(r.L2Area))
	for proc, area := range r.L2Area {
		l2Norm[proc] = round9(Normalize(area, r.Manifest.TechNM, r.Manifest.TargetNM))
	}
	return output.RenderText(paramsTemplate, &paramsData{
		Config:   config,
		Manifest: r.Manifest,
		Binary:   binary,
		Scale:    config.Cacti.AreaScale(),
		Banks:    config.Cacti.L1Banks,
		L2Area:   r.L2Area,
		L2Norm:   l2Norm,
	})
}

// Outputs 生成面积扫描的全部输出文件，此时尚未写入磁盘
func (r *Result) Outputs(config *Config, binary, outDir string, widthInch, heightInch float64) (*output.Batch, error) {
	batch := output.NewBatch()
	table, err := r.Table()
	if err != nil {
		return nil, err
	}
	if err = batch.AddTable(filepath.Join(outDir, SummaryFile), table); err != nil {
		return nil, err
	}
	params, err := r.Params(config, binary)
	if err != nil {
		return nil, err
	}
	batch.Add(filepath.Join(outDir, ParamsFile), params)
	manifest, err := r.Manifest.Marshal()
	if err != nil {
		return nil, err
	}
	batch.Add(filepath.Join(outDir, ManifestFile), manifest)
	charts := r.Charts()
	for _, name := range []string{
		chart.FileName("area", "cores", "l1_total_area", "l1"),
		chart.FileName("area", "cores", "total_area", "l1"),
	} {
		png, err := charts[name].Render(widthInch, heightInch)
		if err != nil {
			return nil, err
		}
		batch.Add(filepath.Join(outDir, FiguresDir, name), png)
	}
	return batch, nil
}
