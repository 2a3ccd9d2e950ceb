package core

import (
	"fmt"
	"github.com/packagewjx/cacheflow/internal/utils"
)

// SweepPoint 一次仿真或面积估算的配置点
type SweepPoint struct {
	Proc   string
	SizeKB int
}

func (p SweepPoint) SizeBytes() int {
	return p.SizeKB * 1024
}

func (p SweepPoint) String() string {
	return fmt.Sprintf("%s/%dKB", p.Proc, p.SizeKB)
}

// Less 先按处理器名再按大小排序
func (p SweepPoint) Less(o SweepPoint) bool {
	if p.Proc != o.Proc {
		return p.Proc < o.Proc
	}
	return p.SizeKB < o.SizeKB
}

// L1Points 枚举处理器的L1扫描点
func (p *ProcessorConfig) L1Points() []SweepPoint {
	res := make([]SweepPoint, len(p.L1SweepKB))
	for i, kb := range p.L1SweepKB {
		res[i] = SweepPoint{Proc: p.Name, SizeKB: kb}
	}
	return res
}

func (p *ProcessorConfig) InDomain(sizeKB int) bool {
	return utils.ContainsInt(p.L1DomainKB, sizeKB)
}
