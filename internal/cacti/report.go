package cacti

import (
	"fmt"
	"github.com/packagewjx/cacheflow/internal/statfile"
	"github.com/pkg/errors"
	"io/ioutil"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrMissingField = errors.New("缺少预期字段")
	ErrMismatch     = errors.New("CACTI报告的参数与请求不一致")
)

var (
	reportSize   = regexp.MustCompile(`Total cache size \(bytes\):\s*([0-9]+)`)
	reportBlock  = regexp.MustCompile(`Block size \(bytes\):\s*([0-9]+)`)
	reportAssoc  = regexp.MustCompile(`Associativity:\s*([0-9]+)`)
	reportTech   = regexp.MustCompile(`Technology size \(nm\):\s*([0-9.]+)`)
	reportHeight = regexp.MustCompile(`Cache height x width \(mm\):\s*([0-9.]+)\s*x\s*([0-9.]+)`)
)

// Report CACTI输出中关心的字段
type Report struct {
	SizeBytes  int     `yaml:"sizeBytes"`
	BlockBytes int     `yaml:"blockBytes"`
	Assoc      int     `yaml:"assoc"`
	TechNM     float64 `yaml:"techNM"`
	HeightMM   float64 `yaml:"heightMM"`
	WidthMM    float64 `yaml:"widthMM"`
	AreaMM2    float64 `yaml:"areaMM2"`
}

func ParseReport(text string) (*Report, error) {
	mSize := reportSize.FindStringSubmatch(text)
	mBlock := reportBlock.FindStringSubmatch(text)
	mAssoc := reportAssoc.FindStringSubmatch(text)
	mTech := reportTech.FindStringSubmatch(text)
	mHW := reportHeight.FindStringSubmatch(text)

	var missing []string
	for _, f := range []struct {
		name  string
		match []string
	}{
		{"Total cache size (bytes)", mSize},
		{"Block size (bytes)", mBlock},
		{"Associativity", mAssoc},
		{"Technology size (nm)", mTech},
		{"Cache height x width (mm)", mHW},
	} {
		if f.match == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) != 0 {
		return nil, errors.Wrap(ErrMissingField, strings.Join(missing, ", "))
	}

	res := &Report{}
	var err error
	if res.SizeBytes, err = strconv.Atoi(mSize[1]); err != nil {
		return nil, errors.Wrap(err, "解析缓存大小出错")
	}
	if res.BlockBytes, err = strconv.Atoi(mBlock[1]); err != nil {
		return nil, errors.Wrap(err, "解析块大小出错")
	}
	if res.Assoc, err = strconv.Atoi(mAssoc[1]); err != nil {
		return nil, errors.Wrap(err, "解析相联度出错")
	}
	if res.TechNM, err = strconv.ParseFloat(mTech[1], 64); err != nil {
		return nil, errors.Wrap(err, "解析工艺尺寸出错")
	}
	if res.HeightMM, err = strconv.ParseFloat(mHW[1], 64); err != nil {
		return nil, errors.Wrap(err, "解析高度出错")
	}
	if res.WidthMM, err = strconv.ParseFloat(mHW[2], 64); err != nil {
		return nil, errors.Wrap(err, "解析宽度出错")
	}
	res.AreaMM2 = res.HeightMM * res.WidthMM
	return res, nil
}

func ParseReportFile(path string) (*Report, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "读取CACTI输出 %s 出错", path)
	}
	text, err := statfile.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "读取CACTI输出 %s 出错", path)
	}
	report, err := ParseReport(text)
	if err != nil {
		return nil, errors.Wrapf(err, "无法从 %s 解析预期字段", path)
	}
	return report, nil
}

// Validate 检查CACTI实际使用的参数与请求一致。工艺尺寸按整数纳米比较。
func (r *Report) Validate(t Target) error {
	var diffs []string
	if r.SizeBytes != t.SizeBytes {
		diffs = append(diffs, fmt.Sprintf("cache size: got %d, expected %d", r.SizeBytes, t.SizeBytes))
	}
	if r.BlockBytes != t.BlockBytes {
		diffs = append(diffs, fmt.Sprintf("block size: got %d, expected %d", r.BlockBytes, t.BlockBytes))
	}
	if r.Assoc != t.Assoc {
		diffs = append(diffs, fmt.Sprintf("associativity: got %d, expected %d", r.Assoc, t.Assoc))
	}
	if math.Round(r.TechNM) != math.Round(t.TechNM) {
		diffs = append(diffs, fmt.Sprintf("technology: got %gnm, expected %gnm", r.TechNM, t.TechNM))
	}
	if len(diffs) != 0 {
		return errors.Wrap(ErrMismatch, strings.Join(diffs, "; "))
	}
	return nil
}
