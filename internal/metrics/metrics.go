// Package metrics 从gem5的运行目录中提取IPC、缺失率等指标，并按应用汇总最佳L1配置
package metrics

import (
	"fmt"
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/packagewjx/cacheflow/internal/statfile"
	"github.com/pkg/errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrMissingStats = errors.New("缺少stats文件")

type Row struct {
	Proc              string
	App               string
	L1KB              int
	RunPath           string
	SimInsts          float64
	NumCycles         float64
	IPC               float64
	IL1MissRate       float64
	DL1MissRate       float64
	L2MissRate        float64
	CondIncorrect     float64
	CondPredicted     float64
	BranchMispredRate float64
	CommitMispredicts float64
	BTBHitRatio       float64
}

// RunDir gem5运行目录的命名规则 <app>_L1_<kb>k
func RunDir(runsBase, app string, kb int) string {
	return filepath.Join(runsBase, fmt.Sprintf("%s_L1_%dk", app, kb))
}

// BranchMispredRate 条件分支预测错误率，预测次数为0或不可用时为NaN
func BranchMispredRate(incorrect, predicted float64) float64 {
	if predicted == 0 || math.IsNaN(predicted) {
		return math.NaN()
	}
	return incorrect / predicted
}

func NewRow(proc, app string, kb int, runPath string, r statfile.Record) Row {
	condIncorrect := r.Get(core.StatCondIncorrect)
	condPredicted := r.Get(core.StatCondPredicted)
	return Row{
		Proc:              proc,
		App:               app,
		L1KB:              kb,
		RunPath:           runPath,
		SimInsts:          r.Get(core.StatSimInsts),
		NumCycles:         r.Get(core.StatNumCycles),
		IPC:               r.Get(core.StatIPC),
		IL1MissRate:       r.Get(core.StatICacheMissRate),
		DL1MissRate:       r.Get(core.StatDCacheMissRate),
		L2MissRate:        r.Get(core.StatL2MissRate),
		CondIncorrect:     condIncorrect,
		CondPredicted:     condPredicted,
		BranchMispredRate: BranchMispredRate(condIncorrect, condPredicted),
		CommitMispredicts: r.Get(core.StatCommitMispredicts),
		BTBHitRatio:       r.Get(core.StatBTBHitRatio),
	}
}

// Collect 读取处理器合法L1范围内每个应用的stats文件。缺失的文件全部列出后报错。
func Collect(runsBase string, proc *core.ProcessorConfig, apps []string, stats core.StatsConfig) ([]Row, error) {
	var rows []Row
	var missing []string
	for _, app := range apps {
		for _, kb := range proc.L1DomainKB {
			runDir := RunDir(runsBase, app, kb)
			statsPath := filepath.Join(runDir, stats.FileName)
			if _, err := os.Stat(statsPath); err != nil {
				missing = append(missing, statsPath)
				continue
			}
			record, err := statfile.ReadFile(statsPath, stats.Keys)
			if err != nil {
				return nil, err
			}
			rows = append(rows, NewRow(proc.Name, app, kb, runDir, record))
		}
	}
	if len(missing) != 0 {
		return nil, errors.Wrapf(ErrMissingStats, "\n%s", strings.Join(missing, "\n"))
	}
	SortRows(rows)
	return rows, nil
}

// SortRows 按处理器、应用、L1大小排序
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Proc != rows[j].Proc {
			return rows[i].Proc < rows[j].Proc
		}
		if rows[i].App != rows[j].App {
			return rows[i].App < rows[j].App
		}
		return rows[i].L1KB < rows[j].L1KB
	})
}
