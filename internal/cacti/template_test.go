package cacti

import (
	"github.com/packagewjx/cacheflow/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"strings"
	"testing"
)

func readTemplate(t *testing.T, name string) string {
	data, err := ioutil.ReadFile(test.DataFile("cacti", name))
	require.NoError(t, err)
	return string(data)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		line string
		want action
	}{
		{"-size (bytes) 32768", action{kind: actionSetNumeric, directive: directiveSize, active: true}},
		{"//-size (bytes) 2048", action{kind: actionSetNumeric, directive: directiveSize}},
		{"  -block size (bytes) 64", action{kind: actionSetNumeric, directive: directiveBlock, active: true}},
		{"//-associativity 0", action{kind: actionSetNumeric, directive: directiveAssoc}},
		{"-technology (u) 0.032", action{kind: actionSetNumeric, directive: directiveTech, active: true}},
		{`//-cache type "cache"`, action{kind: actionForceMode, mode: ModeCache, active: true}},
		{`-cache type "ram"`, action{kind: actionForceMode, mode: ModeRAM}},
		{`-cache type "main memory"`, action{kind: actionForceMode, mode: ModeMainMemory}},
		{`//-Cache level (L2/L3) - "L3"`, action{kind: actionSetLevel}},
		{`-Cache level (L2/L3) - "L1"`, action{kind: actionSetLevel}},
		{`-Cache level (L2/L3) - "L4"`, action{kind: actionPass}},
		{"-size (bytes) large", action{kind: actionPass}},
		{"-UCA bank count 1", action{kind: actionPass}},
		{"# Cache size", action{kind: actionPass}},
		{"", action{kind: actionPass}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classify(c.line), c.line)
	}
}

func TestPatchRules(t *testing.T) {
	template := strings.Join([]string{
		"# Cache size",
		"//-size (bytes) 2048",
		"-size (bytes) 32768",
		"-block size (bytes) 64",
		"-associativity 2",
		"-technology (u) 0.090",
		`-cache type "ram"`,
		`-cache type "cache"`,
		`-cache type "main memory"`,
		`//-Cache level (L2/L3) - "L3"`,
		"-UCA bank count 1",
		"",
	}, "\n")
	out := Patch(template, Target{SizeBytes: 8192, BlockBytes: 32, Assoc: 4, TechNM: 45, Level: LevelL1})
	assert.Equal(t, strings.Join([]string{
		"# Cache size",
		"//-size (bytes) 2048",
		"-size (bytes) 8192",
		"-block size (bytes) 32",
		"-associativity 4",
		"-technology (u) 0.045",
		`//-cache type "ram"`,
		`-cache type "cache"`,
		`//-cache type "main memory"`,
		`-Cache level (L2/L3) - "L1"`,
		"-UCA bank count 1",
		"",
	}, "\n"), out)
}

func TestPatchActivatesWhenNoActiveLine(t *testing.T) {
	template := "//-size (bytes) 2048\n//-size (bytes) 4096\n-block size (bytes) 64\n"
	out := Patch(template, Target{SizeBytes: 1024, BlockBytes: 64, Assoc: 1, TechNM: 32, Level: LevelL1})
	assert.Equal(t, "-size (bytes) 1024\n//-size (bytes) 4096\n-block size (bytes) 64\n", out)
}

func TestPatchKeepsLineEndings(t *testing.T) {
	template := "-size (bytes) 2048\r\n-UCA bank count 1\r\n-associativity 2"
	out := Patch(template, Target{SizeBytes: 4096, BlockBytes: 64, Assoc: 8, TechNM: 32, Level: LevelL2})
	assert.Equal(t, "-size (bytes) 4096\r\n-UCA bank count 1\r\n-associativity 8", out)
}

func TestPatchPreservesLineCount(t *testing.T) {
	templates := []string{
		readTemplate(t, "cache_L1_A15.cfg"),
		readTemplate(t, "cache_L1_A7.cfg"),
		"",
		"\n\n\n",
		"no newline at end",
		"-size (bytes) 1\n-size (bytes) 2\n",
	}
	for _, tmpl := range templates {
		out := Patch(tmpl, Target{SizeBytes: 65536, BlockBytes: 64, Assoc: 16, TechNM: 28, Level: LevelL3})
		assert.Equal(t, len(splitLines(tmpl)), len(splitLines(out)))
	}
}

func TestPatchEcho(t *testing.T) {
	levels := []Level{LevelL1, LevelL2, LevelL3}
	techs := []float64{28, 32, 45}
	for _, name := range []string{"cache_L1_A15.cfg", "cache_L1_A7.cfg"} {
		tmpl := readTemplate(t, name)
		for _, size := range []int{1024, 8192, 524288} {
			for i, tech := range techs {
				target := Target{
					SizeBytes:  size,
					BlockBytes: 32 << uint(i),
					Assoc:      2 << uint(i),
					TechNM:     tech,
					Level:      levels[i],
				}
				settings, err := ReadSettings(Patch(tmpl, target))
				require.NoError(t, err, name)
				assert.Equal(t, target.SizeBytes, settings.SizeBytes)
				assert.Equal(t, target.BlockBytes, settings.BlockBytes)
				assert.Equal(t, target.Assoc, settings.Assoc)
				assert.InDelta(t, target.TechNM, settings.TechNM, 1e-9)
				assert.Equal(t, target.Level, settings.Level)
				assert.Equal(t, ModeCache, settings.Mode)
			}
		}
	}
}

func TestReadSettingsMissing(t *testing.T) {
	_, err := ReadSettings("-size (bytes) 1024\n//-block size (bytes) 64\n")
	require.Error(t, err)
	assert.Equal(t, ErrMissingField, errors.Cause(err))
	assert.Contains(t, err.Error(), "block size (bytes)")
	assert.Contains(t, err.Error(), "Cache level (L2/L3)")
}

func TestReadSettingsLastWins(t *testing.T) {
	settings, err := ReadSettings(strings.Join([]string{
		"-size (bytes) 1024",
		"-size (bytes) 2048",
		"-block size (bytes) 64",
		"-associativity 4",
		"-technology (u) 0.032",
		`-Cache level (L2/L3) - "L2"`,
	}, "\n"))
	require.NoError(t, err)
	assert.Equal(t, 2048, settings.SizeBytes)
	assert.Equal(t, "", settings.Mode)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("l2")
	assert.NoError(t, err)
	assert.Equal(t, LevelL2, l)
	_, err = ParseLevel("L4")
	assert.Error(t, err)
}

func TestTargetValidate(t *testing.T) {
	assert.NoError(t, Target{SizeBytes: 1, BlockBytes: 1, Assoc: 1, TechNM: 32, Level: LevelL1}.Validate())
	assert.Error(t, Target{SizeBytes: 0, BlockBytes: 1, Assoc: 1, TechNM: 32, Level: LevelL1}.Validate())
	assert.Error(t, Target{SizeBytes: 1, BlockBytes: 1, Assoc: 1, TechNM: 0, Level: LevelL1}.Validate())
	assert.Error(t, Target{SizeBytes: 1, BlockBytes: 1, Assoc: 1, TechNM: 32, Level: "L0"}.Validate())
}
