package metrics

import (
	"github.com/montanaflynn/stats"
	"math"
	"sort"
)

type Summary struct {
	Proc             string
	App              string
	BestL1ByIPC      int
	BestIPC          float64
	BestL1ByCycles   int
	MinCycles        float64
	PlateauL1        int
	PlateauThreshold float64
}

// Pick 在values中选出最大（maximize）或最小的下标，相等时选择size较小者。
// NaN不参与比较，全部为NaN时返回-1。
func Pick(values []float64, sizes []int, maximize bool) int {
	best := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		better := v > values[best]
		if !maximize {
			better = v < values[best]
		}
		if better || (v == values[best] && sizes[i] < sizes[best]) {
			best = i
		}
	}
	return best
}

// Plateau 返回阈值 (1-tolerance)*max 以及第一个达到阈值的最小size的下标
func Plateau(values []float64, sizes []int, tolerance float64) (float64, int) {
	valid := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	max, err := stats.Max(valid)
	if err != nil {
		return math.NaN(), -1
	}
	threshold := max * (1 - tolerance)
	choice := -1
	for i, v := range values {
		if math.IsNaN(v) || v < threshold {
			continue
		}
		if choice == -1 || sizes[i] < sizes[choice] {
			choice = i
		}
	}
	return threshold, choice
}

type groupKey struct {
	proc string
	app  string
}

// Summarize 对每个(处理器, 应用)分组分别选出最佳配置，结果按应用、处理器排序。
// IPC全部不可用的分组被跳过。
func Summarize(rows []Row, tolerance float64) []Summary {
	groups := make(map[groupKey][]Row)
	var keys []groupKey
	for _, row := range rows {
		key := groupKey{proc: row.Proc, app: row.App}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], row)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keyLess(keys[i], keys[j])
	})

	var res []Summary
	for _, key := range keys {
		group := groups[key]
		ipc := make([]float64, len(group))
		cycles := make([]float64, len(group))
		sizes := make([]int, len(group))
		for i, row := range group {
			ipc[i], cycles[i], sizes[i] = row.IPC, row.NumCycles, row.L1KB
		}
		bestIPC := Pick(ipc, sizes, true)
		if bestIPC == -1 {
			continue
		}
		summary := Summary{
			Proc:           key.proc,
			App:            key.app,
			BestL1ByIPC:    sizes[bestIPC],
			BestIPC:        ipc[bestIPC],
			BestL1ByCycles: -1,
			MinCycles:      math.NaN(),
		}
		if bestCycles := Pick(cycles, sizes, false); bestCycles != -1 {
			summary.BestL1ByCycles = sizes[bestCycles]
			summary.MinCycles = cycles[bestCycles]
		}
		threshold, plateau := Plateau(ipc, sizes, tolerance)
		summary.PlateauThreshold = threshold
		summary.PlateauL1 = sizes[plateau]
		res = append(res, summary)
	}
	return res
}

func keyLess(a, b groupKey) bool {
	if a.app != b.app {
		return a.app < b.app
	}
	return a.proc < b.proc
}
