// Package sweep 对每个处理器运行CACTI面积扫描，计算归一化后的总面积
package sweep

import (
	"context"
	"fmt"
	"github.com/packagewjx/cacheflow/internal/cacti"
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/pkg/errors"
	"io/ioutil"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrMissingInput = errors.New("缺少输入文件")

// Normalize 将from工艺下的面积换算到to工艺，面积与特征尺寸的平方成正比
func Normalize(area, fromNM, toNM float64) float64 {
	ratio := toNM / fromNM
	return area * (ratio * ratio)
}

func round9(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

type Config struct {
	CactiDir   string
	WorkDir    string // 生成的配置与CACTI原始输出放在此目录下
	Processors []core.ProcessorConfig
	Cacti      core.CactiConfig
}

func (c *Config) CfgDir() string {
	return filepath.Join(c.WorkDir, "generated_cfg")
}

func (c *Config) OutputDir() string {
	return filepath.Join(c.WorkDir, "cacti_outputs")
}

// Row 一个L1扫描点的面积，单位mm^2
type Row struct {
	Proc         string
	L1KB         int
	L1Single     float64 // CACTI工艺下单个L1
	L1Total      float64 // CACTI工艺下全部L1
	L1TotalNorm  float64
	L2           float64
	L2Norm       float64
	CoreNoL1Norm float64
	TotalNorm    float64
}

type Result struct {
	Rows     []Row
	L2Area   map[string]float64 // CACTI工艺下的L2面积
	Manifest *Manifest
}

type Driver interface {
	Run(ctx context.Context) (*Result, error)
}

func New(config *Config, runner cacti.Runner) Driver {
	return &driver{
		config: config,
		runner: runner,
		logger: log.New(os.Stdout, "Sweep: ", log.Lmsgprefix|log.LstdFlags|log.Lshortfile),
	}
}

type driver struct {
	config *Config
	runner cacti.Runner
	logger *log.Logger
}

var _ Driver = &driver{}

// checkInputs 列出所有缺失的输入后再报错
func (d *driver) checkInputs() error {
	var missing []string
	paths := []string{d.runner.BinaryPath()}
	for _, p := range d.config.Processors {
		paths = append(paths, filepath.Join(d.config.CactiDir, p.Template))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	if len(missing) != 0 {
		return errors.Wrapf(ErrMissingInput, "\n%s", strings.Join(missing, "\n"))
	}
	return nil
}

func (d *driver) loadTemplates() (map[string]string, error) {
	res := make(map[string]string)
	for _, p := range d.config.Processors {
		path := filepath.Join(d.config.CactiDir, p.Template)
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "读取模板 %s 出错", path)
		}
		res[p.Name] = string(data)
	}
	return res, nil
}

// runPoint 生成配置、运行CACTI并校验输出
func (d *driver) runPoint(ctx context.Context, template, name string, target cacti.Target) (*ManifestEntry, error) {
	cfgText := cacti.Patch(template, target)
	settings, err := cacti.ReadSettings(cfgText)
	if err != nil {
		return nil, errors.Wrapf(err, "生成的配置 %s 不完整", name)
	}
	if settings.Target != target || settings.Mode != cacti.ModeCache {
		return nil, errors.Wrapf(cacti.ErrMismatch, "生成的配置 %s 与请求不一致：%+v", name, settings)
	}

	cfgPath := filepath.Join(d.config.CfgDir(), name+".cfg")
	reportPath := filepath.Join(d.config.OutputDir(), name+".txt")
	if err := ioutil.WriteFile(cfgPath, []byte(cfgText), 0644); err != nil {
		return nil, errors.Wrapf(err, "写入配置 %s 出错", cfgPath)
	}
	if err := d.runner.Run(ctx, cfgPath, reportPath); err != nil {
		return nil, err
	}
	report, err := cacti.ParseReportFile(reportPath)
	if err != nil {
		return nil, err
	}
	if err := report.Validate(target); err != nil {
		return nil, errors.Wrapf(err, "校验 %s 出错", reportPath)
	}
	d.logger.Printf("%s 面积 %.6f mm^2", name, report.AreaMM2)
	return &ManifestEntry{
		Name:   name,
		Level:  string(target.Level),
		Config: cfgPath,
		Output: reportPath,
		Report: *report,
	}, nil
}

func pointName(proc string, level cacti.Level, kb int) string {
	return fmt.Sprintf("%s_%s_%dKB", strings.ToLower(proc), level, kb)
}

func (d *driver) Run(ctx context.Context) (*Result, error) {
	if err := d.checkInputs(); err != nil {
		return nil, err
	}
	for _, dir := range []string{d.config.CfgDir(), d.config.OutputDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "创建目录 %s 出错", dir)
		}
	}
	templates, err := d.loadTemplates()
	if err != nil {
		return nil, err
	}

	tech := d.config.Cacti.TechNM
	target := d.config.Cacti.TargetNM
	manifest := &Manifest{
		CactiDir: d.config.CactiDir,
		TechNM:   tech,
		TargetNM: target,
	}
	res := &Result{L2Area: make(map[string]float64), Manifest: manifest}

	// L2固定，每个处理器只运行一次
	for _, p := range d.config.Processors {
		entry, err := d.runPoint(ctx, templates[p.Name], pointName(p.Name, cacti.LevelL2, p.L2SizeKB), cacti.Target{
			SizeBytes:  p.L2SizeKB * 1024,
			BlockBytes: p.L2BlockBytes,
			Assoc:      p.L2Assoc,
			TechNM:     tech,
			Level:      cacti.LevelL2,
		})
		if err != nil {
			return nil, err
		}
		entry.Proc, entry.SizeKB = p.Name, p.L2SizeKB
		manifest.Entries = append(manifest.Entries, *entry)
		res.L2Area[p.Name] = entry.Report.AreaMM2
	}

	for _, p := range d.config.Processors {
		for _, point := range p.L1Points() {
			entry, err := d.runPoint(ctx, templates[p.Name], pointName(p.Name, cacti.LevelL1, point.SizeKB), cacti.Target{
				SizeBytes:  point.SizeBytes(),
				BlockBytes: p.L1BlockBytes,
				Assoc:      p.L1Assoc,
				TechNM:     tech,
				Level:      cacti.LevelL1,
			})
			if err != nil {
				return nil, err
			}
			entry.Proc, entry.SizeKB = p.Name, point.SizeKB
			manifest.Entries = append(manifest.Entries, *entry)
			res.Rows = append(res.Rows, d.derive(&p, point, entry.Report.AreaMM2, res.L2Area[p.Name]))
		}
	}

	sort.SliceStable(res.Rows, func(i, j int) bool {
		return core.SweepPoint{Proc: res.Rows[i].Proc, SizeKB: res.Rows[i].L1KB}.
			Less(core.SweepPoint{Proc: res.Rows[j].Proc, SizeKB: res.Rows[j].L1KB})
	})
	return res, nil
}

func (d *driver) derive(p *core.ProcessorConfig, point core.SweepPoint, l1Single, l2 float64) Row {
	tech, target := d.config.Cacti.TechNM, d.config.Cacti.TargetNM
	l1Total := float64(d.config.Cacti.L1Banks) * l1Single
	l1TotalNorm := Normalize(l1Total, tech, target)
	l2Norm := Normalize(l2, tech, target)
	return Row{
		Proc:         p.Name,
		L1KB:         point.SizeKB,
		L1Single:     round9(l1Single),
		L1Total:      round9(l1Total),
		L1TotalNorm:  round9(l1TotalNorm),
		L2:           round9(l2),
		L2Norm:       round9(l2Norm),
		CoreNoL1Norm: round9(p.CoreNoL1Area),
		TotalNorm:    round9(p.CoreNoL1Area + l2Norm + l1TotalNorm),
	}
}
