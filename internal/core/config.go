package core

import (
	"encoding/json"
	"fmt"
	"github.com/packagewjx/cacheflow/internal/utils"
	"strings"
	"time"
)

// 顶层公共Config
type Config struct {
	Processors []ProcessorConfig
	Apps       []string
	Stats      StatsConfig
	Cacti      CactiConfig
	Summary    SummaryConfig
	Efficiency EfficiencyConfig
	Chart      ChartConfig
}

type ProcessorConfig struct {
	Name         string
	L1SweepKB    []int // CACTI面积扫描的L1大小
	L1DomainKB   []int // gem5仿真与面积效率计算的合法L1大小
	L1BlockBytes int
	L1Assoc      int
	L2SizeKB     int
	L2BlockBytes int
	L2Assoc      int
	CoreNoL1Area float64 // 不含L1的核心面积，mm^2，已归一化到目标工艺
	Template     string  // CACTI目录下的配置模板文件名
	Notes        []string
}

type StatsConfig struct {
	Keys     []string
	FileName string
}

type CactiConfig struct {
	Binary   string
	TechNM   float64 // CACTI运行所用工艺
	TargetNM float64 // 面积归一化目标工艺
	L1Banks  int     // I-L1 + D-L1
	Timeout  time.Duration
}

type SummaryConfig struct {
	PlateauTolerance float64
}

type SampleConfig struct {
	Proc string
	App  string
	L1KB int
}

type EfficiencyConfig struct {
	MaxReportedFailures int
	Sample              SampleConfig
}

type ChartConfig struct {
	WidthInch  float64
	HeightInch float64
}

const (
	StatSimInsts          = "simInsts"
	StatNumCycles         = "system.cpu.numCycles"
	StatIPC               = "system.cpu.ipc"
	StatICacheMissRate    = "system.cpu.icache.overallMissRate::total"
	StatDCacheMissRate    = "system.cpu.dcache.overallMissRate::total"
	StatL2MissRate        = "system.l2cache.overallMissRate::total"
	StatCondIncorrect     = "system.cpu.branchPred.condIncorrect"
	StatCondPredicted     = "system.cpu.branchPred.condPredicted"
	StatCommitMispredicts = "system.cpu.commit.branchMispredicts"
	StatBTBHitRatio       = "system.cpu.branchPred.BTBHitRatio"
)

var RootConfig = &Config{
	Processors: DefaultProcessors(),
	Apps:       []string{"dijkstra", "blowfish"},
	Stats: StatsConfig{
		Keys: []string{StatSimInsts, StatNumCycles, StatIPC, StatICacheMissRate, StatDCacheMissRate,
			StatL2MissRate, StatCondIncorrect, StatCondPredicted, StatCommitMispredicts, StatBTBHitRatio},
		FileName: "stats.txt",
	},
	Cacti: CactiConfig{
		Binary:   "cacti",
		TechNM:   32,
		TargetNM: 28,
		L1Banks:  2,
		Timeout:  0,
	},
	Summary: SummaryConfig{
		PlateauTolerance: 0.01,
	},
	Efficiency: EfficiencyConfig{
		MaxReportedFailures: 25,
		Sample: SampleConfig{
			Proc: "A15",
			App:  "dijkstra",
			L1KB: 8,
		},
	},
	Chart: ChartConfig{
		WidthInch:  7,
		HeightInch: 4.4,
	},
}

func DefaultProcessors() []ProcessorConfig {
	return []ProcessorConfig{
		{
			Name: "A7",
			// 面积扫描额外包含32KB，方便与A15直接对比
			L1SweepKB:    []int{1, 2, 4, 8, 16, 32},
			L1DomainKB:   []int{1, 2, 4, 8, 16},
			L1BlockBytes: 32,
			L1Assoc:      2,
			L2SizeKB:     512,
			L2BlockBytes: 32,
			L2Assoc:      8,
			CoreNoL1Area: 0.378825005,
			Template:     "cache_L1_A7.cfg",
			Notes: []string{
				"Config script: se_A7.py",
				"L2 cache: 512kB, assoc=8, block=32B (fixed)",
				"L1 sweep: I-L1 = D-L1 = 1kB, 2kB, 4kB, 8kB, 16kB",
			},
		},
		{
			Name:         "A15",
			L1SweepKB:    []int{2, 4, 8, 16, 32},
			L1DomainKB:   []int{2, 4, 8, 16, 32},
			L1BlockBytes: 64,
			L1Assoc:      2,
			L2SizeKB:     512,
			L2BlockBytes: 64,
			L2Assoc:      16,
			CoreNoL1Area: 1.928552447,
			Template:     "cache_L1_A15.cfg",
			Notes: []string{
				"CPU model: DerivO3CPU (out-of-order)",
				"Config script: se_A15.py",
				"L2 cache: 512kB, assoc=16, block=64B (fixed)",
				"L1 sweep: I-L1 = D-L1 = 2kB, 4kB, 8kB, 16kB, 32kB",
				"Branch predictor: LocalBP/BranchPredictor wrapper with BTB=256",
				"Decode/Issue/Commit: 4/8/4",
				"RUU/LSQ (gem5 mapping): ROB=16, LQ=16, SQ=16",
				"Fetch queue: 8",
				"Memory: DDR3_1600_8x8, mem-size=2GB",
				"Clock: 2GHz",
				"Dataset: dijkstra input.dat, blowfish input_small.asc",
			},
		},
	}
}

// Processor 按名称查找处理器配置，名称区分大小写
func (config *Config) Processor(name string) (*ProcessorConfig, bool) {
	for i := range config.Processors {
		if config.Processors[i].Name == name {
			return &config.Processors[i], true
		}
	}
	return nil, false
}

func (config *Config) ProcessorNames() []string {
	names := make([]string, len(config.Processors))
	for i, p := range config.Processors {
		names[i] = p.Name
	}
	return names
}

func (config *Config) HasApp(app string) bool {
	return utils.ContainsString(config.Apps, app)
}

// AreaScale 面积随特征尺寸平方缩放
func (c CactiConfig) AreaScale() float64 {
	return (c.TargetNM / c.TechNM) * (c.TargetNM / c.TechNM)
}

func checkSizes(path string, sizes []int) error {
	if len(sizes) == 0 {
		return fmt.Errorf("字段 %s 为空", path)
	}
	for _, s := range sizes {
		if s <= 0 {
			return fmt.Errorf("字段 %s 含有非正数 %d", path, s)
		}
	}
	return nil
}

func checkPositive(path string, val float64) error {
	if val <= 0 {
		return fmt.Errorf("字段 %s 必须为正数，当前为 %v", path, val)
	}
	return nil
}

func checkPowerOfTwo(path string, val int) error {
	if !utils.IsPowerOfTwo(val) {
		return fmt.Errorf("字段 %s 必须为2的幂，当前为 %d", path, val)
	}
	return nil
}

func (p *ProcessorConfig) check() error {
	prefix := "Processors." + p.Name
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("处理器名称为空")
	}
	if p.Template == "" {
		return fmt.Errorf("字段 %s.Template 为空", prefix)
	}
	for _, err := range []error{
		checkSizes(prefix+".L1SweepKB", p.L1SweepKB),
		checkSizes(prefix+".L1DomainKB", p.L1DomainKB),
		checkPowerOfTwo(prefix+".L1BlockBytes", p.L1BlockBytes),
		checkPowerOfTwo(prefix+".L2BlockBytes", p.L2BlockBytes),
		checkPositive(prefix+".L1Assoc", float64(p.L1Assoc)),
		checkPositive(prefix+".L2Assoc", float64(p.L2Assoc)),
		checkPositive(prefix+".L2SizeKB", float64(p.L2SizeKB)),
		checkPositive(prefix+".CoreNoL1Area", p.CoreNoL1Area),
	} {
		if err != nil {
			return err
		}
	}
	for _, kb := range p.L1DomainKB {
		if !utils.ContainsInt(p.L1SweepKB, kb) {
			return fmt.Errorf("字段 %s.L1DomainKB 的 %d 不在 L1SweepKB 中", prefix, kb)
		}
	}
	return nil
}

func (config *Config) Check() error {
	if len(config.Processors) == 0 {
		return fmt.Errorf("没有配置处理器")
	}
	seen := make(map[string]struct{})
	for i := range config.Processors {
		p := &config.Processors[i]
		if err := p.check(); err != nil {
			return err
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("处理器 %s 重复配置", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	if len(config.Apps) == 0 {
		return fmt.Errorf("没有配置应用程序")
	}
	if len(config.Stats.Keys) == 0 || config.Stats.FileName == "" {
		return fmt.Errorf("Stats配置不完整")
	}
	if config.Cacti.Binary == "" {
		return fmt.Errorf("字段 Cacti.Binary 为空")
	}
	for _, err := range []error{
		checkPositive("Cacti.TechNM", config.Cacti.TechNM),
		checkPositive("Cacti.TargetNM", config.Cacti.TargetNM),
		checkPositive("Cacti.L1Banks", float64(config.Cacti.L1Banks)),
		checkPositive("Efficiency.MaxReportedFailures", float64(config.Efficiency.MaxReportedFailures)),
		checkPositive("Chart.WidthInch", config.Chart.WidthInch),
		checkPositive("Chart.HeightInch", config.Chart.HeightInch),
	} {
		if err != nil {
			return err
		}
	}
	if config.Cacti.Timeout < 0 {
		return fmt.Errorf("字段 Cacti.Timeout 不能为负数")
	}
	if config.Summary.PlateauTolerance < 0 || config.Summary.PlateauTolerance >= 1 {
		return fmt.Errorf("字段 Summary.PlateauTolerance 必须在[0, 1)之间，当前为 %v",
			config.Summary.PlateauTolerance)
	}
	if _, ok := config.Processor(config.Efficiency.Sample.Proc); !ok {
		return fmt.Errorf("验证样本处理器 %s 未配置", config.Efficiency.Sample.Proc)
	}
	return nil
}

func (config *Config) String() string {
	marshal, _ := json.Marshal(config)
	return string(marshal)
}
