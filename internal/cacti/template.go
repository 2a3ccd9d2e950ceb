// Package cacti 负责CACTI配置模板的改写、CACTI的调用以及输出报告的解析
package cacti

import (
	"fmt"
	"github.com/pkg/errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type Level string

var (
	LevelL1 Level = "L1"
	LevelL2 Level = "L2"
	LevelL3 Level = "L3"
)

func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelL1:
		return LevelL1, nil
	case LevelL2:
		return LevelL2, nil
	case LevelL3:
		return LevelL3, nil
	default:
		return "", fmt.Errorf("未知的缓存层级 %q，只能是L1、L2或L3", s)
	}
}

// Target 一次CACTI运行所请求的缓存参数
type Target struct {
	SizeBytes  int
	BlockBytes int
	Assoc      int
	TechNM     float64
	Level      Level
}

func (t Target) Validate() error {
	if t.SizeBytes <= 0 || t.BlockBytes <= 0 || t.Assoc <= 0 {
		return fmt.Errorf("缓存参数必须为正数：%+v", t)
	}
	if t.TechNM <= 0 {
		return fmt.Errorf("工艺尺寸必须为正数：%v", t.TechNM)
	}
	if _, err := ParseLevel(string(t.Level)); err != nil {
		return err
	}
	return nil
}

type directive int

const (
	directiveSize directive = iota
	directiveBlock
	directiveAssoc
	directiveTech
	numNumericDirectives
)

var numericKeys = [numNumericDirectives]string{
	directiveSize:  "size (bytes)",
	directiveBlock: "block size (bytes)",
	directiveAssoc: "associativity",
	directiveTech:  "technology (u)",
}

var numericPatterns = [numNumericDirectives]*regexp.Regexp{
	directiveSize:  regexp.MustCompile(`^(//)?-size \(bytes\)\s+(\d+)`),
	directiveBlock: regexp.MustCompile(`^(//)?-block size \(bytes\)\s+(\d+)`),
	directiveAssoc: regexp.MustCompile(`^(//)?-associativity\s+(\d+)`),
	directiveTech:  regexp.MustCompile(`^(//)?-technology \(u\)\s+([0-9.]+)`),
}

var levelPattern = regexp.MustCompile(`^(//)?-Cache level \(L2/L3\)\s+-\s+"(L1|L2|L3)"`)

const (
	ModeCache      = "cache"
	ModeRAM        = "ram"
	ModeMainMemory = "main memory"
)

var modes = []string{ModeCache, ModeRAM, ModeMainMemory}

type actionKind int

const (
	actionPass actionKind = iota
	actionSetNumeric
	actionForceMode
	actionSetLevel
)

// action 对模板中一行的处理方式
type action struct {
	kind      actionKind
	directive directive
	mode      string
	active    bool // 该行当前是否生效，forceMode时表示目标状态
}

// classify 只看一行本身，判断它属于哪条指令
func classify(line string) action {
	stripped := strings.TrimLeft(line, " \t")
	for d, pattern := range numericPatterns {
		if m := pattern.FindStringSubmatch(stripped); m != nil {
			return action{kind: actionSetNumeric, directive: directive(d), active: m[1] == ""}
		}
	}
	for _, mode := range modes {
		if strings.Contains(stripped, `cache type "`+mode+`"`) {
			return action{kind: actionForceMode, mode: mode, active: mode == ModeCache}
		}
	}
	if levelPattern.MatchString(stripped) {
		return action{kind: actionSetLevel}
	}
	return action{kind: actionPass}
}

// plan 决定每一行的最终动作。数值指令只改写生效的行；
// 若某指令在模板中没有生效的行，则启用它第一次出现的注释行。
func plan(lines []string) []action {
	actions := make([]action, len(lines))
	var hasActive [numNumericDirectives]bool
	for i, line := range lines {
		actions[i] = classify(line)
		if actions[i].kind == actionSetNumeric && actions[i].active {
			hasActive[actions[i].directive] = true
		}
	}
	var activated [numNumericDirectives]bool
	for i := range actions {
		a := &actions[i]
		if a.kind != actionSetNumeric || a.active {
			continue
		}
		if !hasActive[a.directive] && !activated[a.directive] {
			activated[a.directive] = true
			continue
		}
		a.kind = actionPass
	}
	return actions
}

func (t Target) numericValue(d directive) string {
	switch d {
	case directiveSize:
		return strconv.Itoa(t.SizeBytes)
	case directiveBlock:
		return strconv.Itoa(t.BlockBytes)
	case directiveAssoc:
		return strconv.Itoa(t.Assoc)
	default:
		return strconv.FormatFloat(t.TechNM/1000, 'f', 3, 64)
	}
}

func (a action) render(original string, t Target) string {
	switch a.kind {
	case actionSetNumeric:
		return fmt.Sprintf("-%s %s", numericKeys[a.directive], t.numericValue(a.directive))
	case actionForceMode:
		if a.active {
			return fmt.Sprintf(`-cache type "%s"`, a.mode)
		}
		return fmt.Sprintf(`//-cache type "%s"`, a.mode)
	case actionSetLevel:
		return fmt.Sprintf(`-Cache level (L2/L3) - "%s"`, t.Level)
	default:
		return original
	}
}

// splitLines 按行切分，保留每行的换行符
func splitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func cutEOL(line string) (string, string) {
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2], "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

// Patch 按目标参数改写CACTI配置模板，行数保持不变
func Patch(template string, t Target) string {
	lines := splitLines(template)
	bodies := make([]string, len(lines))
	eols := make([]string, len(lines))
	for i, line := range lines {
		bodies[i], eols[i] = cutEOL(line)
	}
	actions := plan(bodies)
	var sb strings.Builder
	sb.Grow(len(template) + 64)
	for i, a := range actions {
		sb.WriteString(a.render(bodies[i], t))
		sb.WriteString(eols[i])
	}
	return sb.String()
}

// Settings 模板中生效的设置
type Settings struct {
	Target
	Mode string
}

// ReadSettings 读取模板中生效的指令，同一指令出现多次时以最后一次为准
func ReadSettings(text string) (*Settings, error) {
	res := &Settings{}
	var found [numNumericDirectives]bool
	levelFound := false
	for _, line := range splitLines(text) {
		body, _ := cutEOL(line)
		stripped := strings.TrimLeft(body, " \t")
		a := classify(stripped)
		switch a.kind {
		case actionSetNumeric:
			if !a.active {
				continue
			}
			m := numericPatterns[a.directive].FindStringSubmatch(stripped)
			if err := res.setNumeric(a.directive, m[2]); err != nil {
				return nil, err
			}
			found[a.directive] = true
		case actionForceMode:
			if !strings.HasPrefix(stripped, "//") {
				res.Mode = a.mode
			}
		case actionSetLevel:
			m := levelPattern.FindStringSubmatch(stripped)
			if m[1] == "" {
				res.Level = Level(m[2])
				levelFound = true
			}
		}
	}
	var missing []string
	for d, ok := range found {
		if !ok {
			missing = append(missing, numericKeys[d])
		}
	}
	if !levelFound {
		missing = append(missing, "Cache level (L2/L3)")
	}
	if len(missing) != 0 {
		return nil, errors.Wrapf(ErrMissingField, "配置中没有生效的指令：%s", strings.Join(missing, ", "))
	}
	return res, nil
}

func (s *Settings) setNumeric(d directive, value string) error {
	if d == directiveTech {
		um, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrapf(err, "解析 %s 出错", numericKeys[d])
		}
		s.TechNM = math.Round(um*1e6) / 1e3
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return errors.Wrapf(err, "解析 %s 出错", numericKeys[d])
	}
	switch d {
	case directiveSize:
		s.SizeBytes = n
	case directiveBlock:
		s.BlockBytes = n
	case directiveAssoc:
		s.Assoc = n
	}
	return nil
}
