// Package statfile 解析gem5输出的stats.txt，只保留关心的统计项
package statfile

import (
	"bufio"
	"bytes"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"io"
	"io/ioutil"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Record 统计项名称到数值的映射。不存在的项不代表0。
type Record map[string]float64

// Get 取统计值，不存在时返回NaN
func (r Record) Get(key string) float64 {
	if v, ok := r[key]; ok {
		return v
	}
	return math.NaN()
}

func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Parse 逐行解析 "<name> <value> ..." 格式的报告。
// 空行、#注释行、不在keys中的项以及数值无法解析的行都被跳过，行的长度不受限制。
// 只有读取本身出错时才返回错误。
func Parse(in io.Reader, keys []string) (Record, error) {
	allow := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allow[k] = struct{}{}
	}
	res := make(Record)
	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "读取统计内容出错")
		}
		parseLine(res, allow, line)
		if err == io.EOF {
			return res, nil
		}
	}
}

func parseLine(res Record, allow map[string]struct{}, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}
	if _, ok := allow[fields[0]]; !ok {
		return
	}
	val, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return
	}
	res[fields[0]] = val
}

// Decode 将报告内容转为字符串。非法UTF-8的内容按Latin-1解码。
func Decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Wrap(err, "Latin-1解码失败")
	}
	return string(decoded), nil
}

func ReadFile(path string, keys []string) (Record, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "读取统计文件 %s 出错", path)
	}
	text, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "解码统计文件 %s 出错", path)
	}
	record, err := Parse(bytes.NewBufferString(text), keys)
	if err != nil {
		return nil, errors.Wrapf(err, "解析统计文件 %s 出错", path)
	}
	return record, nil
}
