// Package chart 使用gonum/plot绘制以缓存大小为横轴的折线图
package chart

import (
	"bytes"
	"fmt"
	"github.com/packagewjx/cacheflow/internal/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"math"
	"sort"
	"strconv"
	"strings"
)

type Point struct {
	X float64
	Y float64
}

type Series struct {
	Label  string
	Points []Point
}

type LineChart struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
}

// FileName 图片命名规则 <pipeline>_<group>_<metric>_vs_<axis>.png
func FileName(pipeline, group, metric, axis string) string {
	parts := []string{pipeline, group, metric, "vs", axis}
	for i := range parts {
		parts[i] = strings.ReplaceAll(strings.ToLower(parts[i]), " ", "_")
	}
	return strings.Join(parts, "_") + ".png"
}

// xys 按X排序，去掉NaN点
func (s Series) xys() plotter.XYs {
	res := make(plotter.XYs, 0, len(s.Points))
	for _, p := range s.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			continue
		}
		res = append(res, plotter.XY{X: p.X, Y: p.Y})
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].X < res[j].X
	})
	return res
}

// sizeTicks 每个扫描大小一个刻度
func (c *LineChart) sizeTicks() plot.ConstantTicks {
	var sizes []int
	for _, s := range c.Series {
		for _, p := range s.xys() {
			sizes = append(sizes, int(p.X))
		}
	}
	sizes = utils.SortedInts(sizes)
	ticks := make(plot.ConstantTicks, len(sizes))
	for i, size := range sizes {
		ticks[i] = plot.Tick{Value: float64(size), Label: strconv.Itoa(size)}
	}
	return ticks
}

func (c *LineChart) build() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel
	p.X.Tick.Marker = c.sizeTicks()
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true

	for i, s := range c.Series {
		xys := s.xys()
		if len(xys) == 0 {
			continue
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, errors.Wrapf(err, "创建序列 %s 出错", s.Label)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2)
		points.Color = plotutil.Color(i)
		points.Shape = draw.CircleGlyph{}
		points.Radius = vg.Points(3)
		p.Add(line, points)
		if s.Label != "" {
			p.Legend.Add(s.Label, line, points)
		}
	}
	return p, nil
}

// Render 生成PNG图片内容
func (c *LineChart) Render(widthInch, heightInch float64) ([]byte, error) {
	p, err := c.build()
	if err != nil {
		return nil, err
	}
	writer, err := p.WriterTo(vg.Length(widthInch)*vg.Inch, vg.Length(heightInch)*vg.Inch, "png")
	if err != nil {
		return nil, errors.Wrap(err, "渲染图片出错")
	}
	buf := bytes.NewBuffer(make([]byte, 0, 64*1024))
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("输出图片 %s 出错", c.Title))
	}
	return buf.Bytes(), nil
}
