// Package efficiency 将各处理器的IPC与归一化面积按(处理器, L1大小)连接，计算面积效率IPC/mm^2
package efficiency

import (
	"fmt"
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/packagewjx/cacheflow/internal/output"
	"github.com/packagewjx/cacheflow/internal/sweep"
	"github.com/pkg/errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

var ErrJoin = errors.New("IPC与面积连接不完整")

const (
	ReasonArea        = "area"
	ReasonNonPositive = "area<=0"
	ReasonIPC         = "ipc"
	ipcColumn         = "ipc"
	appColumn         = "app"
	sizeColumn        = "l1_kb"
	areaProcColumn    = "proc"
	areaSizeColumn    = "L1_kB"
)

type Row struct {
	Proc       string
	App        string
	L1KB       int
	IPC        float64
	Area       float64
	Efficiency float64
}

// Failure 一个无法完成连接的(处理器, 应用, 大小)
type Failure struct {
	Proc   string
	App    string
	L1KB   int
	Reason string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s/%s/%dKB: %s", f.Proc, f.App, f.L1KB, f.Reason)
}

type areaKey struct {
	proc string
	kb   int
}

func parseSize(field string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || v != math.Trunc(v) {
		return 0, fmt.Errorf("非法的L1大小 %q", field)
	}
	return int(v), nil
}

func parseFloat(field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func columns(t *output.Table, names ...string) ([]int, error) {
	res := make([]int, len(names))
	for i, name := range names {
		idx, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		res[i] = idx
	}
	return res, nil
}

// readAreas 只保留各处理器合法L1范围内的面积
func readAreas(t *output.Table, config *core.Config) (map[areaKey]float64, error) {
	cols, err := columns(t, areaProcColumn, areaSizeColumn, sweep.TotalColumn(config.Cacti.TargetNM))
	if err != nil {
		return nil, errors.Wrap(err, "面积表格式错误")
	}
	res := make(map[areaKey]float64)
	for i, row := range t.Rows {
		proc, ok := config.Processor(row[cols[0]])
		if !ok {
			continue
		}
		kb, err := parseSize(row[cols[1]])
		if err != nil {
			return nil, errors.Wrapf(err, "面积表第 %d 行", i+2)
		}
		if !proc.InDomain(kb) {
			continue
		}
		res[areaKey{proc: proc.Name, kb: kb}] = parseFloat(row[cols[2]])
	}
	return res, nil
}

// Join 对每个处理器的IPC表连接面积。不认识的应用与不在合法范围内的大小被忽略；
// 其余缺少面积、面积非正或IPC不可用的行全部收集后统一报错。
func Join(ipcTables map[string]*output.Table, areaTable *output.Table, config *core.Config) ([]Row, error) {
	areas, err := readAreas(areaTable, config)
	if err != nil {
		return nil, err
	}
	var rows []Row
	var failures []Failure
	for _, procName := range sortedProcs(ipcTables) {
		proc, ok := config.Processor(procName)
		if !ok {
			return nil, fmt.Errorf("未配置的处理器 %s", procName)
		}
		t := ipcTables[procName]
		cols, err := columns(t, appColumn, sizeColumn, ipcColumn)
		if err != nil {
			return nil, errors.Wrapf(err, "%s 的IPC表格式错误", procName)
		}
		for i, fields := range t.Rows {
			app := fields[cols[0]]
			if !config.HasApp(app) {
				continue
			}
			kb, err := parseSize(fields[cols[1]])
			if err != nil {
				return nil, errors.Wrapf(err, "%s 的IPC表第 %d 行", procName, i+2)
			}
			if !proc.InDomain(kb) {
				continue
			}
			ipc := parseFloat(fields[cols[2]])
			area, ok := areas[areaKey{proc: proc.Name, kb: kb}]
			failure := Failure{Proc: proc.Name, App: app, L1KB: kb}
			switch {
			case !ok || math.IsNaN(area):
				failure.Reason = ReasonArea
			case area <= 0:
				failure.Reason = ReasonNonPositive
			case math.IsNaN(ipc):
				failure.Reason = ReasonIPC
			}
			if failure.Reason != "" {
				failures = append(failures, failure)
				continue
			}
			rows = append(rows, Row{
				Proc:       proc.Name,
				App:        app,
				L1KB:       kb,
				IPC:        ipc,
				Area:       area,
				Efficiency: ipc / area,
			})
		}
	}
	if len(failures) != 0 {
		return nil, joinError(failures, config.Efficiency.MaxReportedFailures)
	}
	SortRows(rows)
	return rows, nil
}

func joinError(failures []Failure, limit int) error {
	shown := failures
	if len(shown) > limit {
		shown = shown[:limit]
	}
	lines := make([]string, len(shown))
	for i, f := range shown {
		lines[i] = f.String()
	}
	return errors.Wrapf(ErrJoin, "共 %d 项失败，前 %d 项：\n%s", len(failures), len(shown),
		strings.Join(lines, "\n"))
}

func sortedProcs(tables map[string]*output.Table) []string {
	res := make([]string, 0, len(tables))
	for name := range tables {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// SortRows 按应用、处理器、大小排序
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].App != rows[j].App {
			return rows[i].App < rows[j].App
		}
		if rows[i].Proc != rows[j].Proc {
			return rows[i].Proc < rows[j].Proc
		}
		return rows[i].L1KB < rows[j].L1KB
	})
}

// SummarizeBest 每个(应用, 处理器)中效率最高的行，相等时取较小的大小。rows需已排序。
func SummarizeBest(rows []Row) []Row {
	var res []Row
	for i := 0; i < len(rows); {
		j := i
		best := i
		for ; j < len(rows) && rows[j].App == rows[i].App && rows[j].Proc == rows[i].Proc; j++ {
			if rows[j].Efficiency > rows[best].Efficiency ||
				(rows[j].Efficiency == rows[best].Efficiency && rows[j].L1KB < rows[best].L1KB) {
				best = j
			}
		}
		res = append(res, rows[best])
		i = j
	}
	return res
}

// Find 查找验证样本
func Find(rows []Row, sample core.SampleConfig) (*Row, bool) {
	for i := range rows {
		if rows[i].Proc == sample.Proc && rows[i].App == sample.App && rows[i].L1KB == sample.L1KB {
			return &rows[i], true
		}
	}
	return nil, false
}
