// Package output 负责CSV表格与参数文件的生成，所有文件在Commit时一次性写出
package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"github.com/packagewjx/cacheflow/internal/statfile"
	"github.com/pkg/errors"
	"io/ioutil"
	"math"
	"strconv"
	"text/template"
)

// Table 列顺序固定的表格
type Table struct {
	Header []string
	Rows   [][]string
}

func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

func (t *Table) Append(fields ...string) error {
	if len(fields) != len(t.Header) {
		return fmt.Errorf("列数不一致，表头 %d 列，数据 %d 列", len(t.Header), len(fields))
	}
	t.Rows = append(t.Rows, fields)
	return nil
}

// Column 返回列的下标
func (t *Table) Column(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("缺少列 %s", name)
}

func (t *Table) Bytes() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 1024))
	writer := csv.NewWriter(buf)
	if err := writer.Write(t.Header); err != nil {
		return nil, errors.Wrap(err, "写入表头出错")
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return nil, errors.Wrap(err, "写入数据出错")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, errors.Wrap(err, "写入CSV出错")
	}
	return buf.Bytes(), nil
}

// ReadTable 读取带表头的CSV
func ReadTable(path string) (*Table, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "读取 %s 出错", path)
	}
	text, err := statfile.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "读取 %s 出错", path)
	}
	records, err := csv.NewReader(bytes.NewBufferString(text)).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "解析CSV %s 出错", path)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV %s 没有表头", path)
	}
	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// Fixed 定点小数，NaN输出为nan
func Fixed(v float64, precision int) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// Float 最短表示
func Float(v float64) string {
	return Fixed(v, -1)
}

func Int(v int) string {
	return strconv.Itoa(v)
}

// RenderText 使用text/template生成参数说明文本
func RenderText(tmpl string, data interface{}) ([]byte, error) {
	t, err := template.New("params").Parse(tmpl)
	if err != nil {
		return nil, errors.Wrap(err, "解析模板出错")
	}
	buf := bytes.NewBuffer(make([]byte, 0, 1024))
	if err := t.Execute(buf, data); err != nil {
		return nil, errors.Wrap(err, "生成文本出错")
	}
	return buf.Bytes(), nil
}
