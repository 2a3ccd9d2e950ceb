package cacti

import (
	"context"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// writeFakeCacti 生成一个假的cacti脚本，输出配置文件路径以及工作目录
func writeFakeCacti(t *testing.T, dir string, exitCode string) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("没有sh")
	}
	script := "#!/bin/sh\necho \"infile $2\"\necho \"cwd $(pwd)\"\necho oops 1>&2\nexit " + exitCode + "\n"
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "cacti"), []byte(script), 0755))
}

func TestRunnerSuccess(t *testing.T) {
	dir, err := ioutil.TempDir("", "cacti")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(dir) }()
	writeFakeCacti(t, dir, "0")

	cfg := filepath.Join(dir, "a.cfg")
	out := filepath.Join(dir, "a.txt")
	require.NoError(t, ioutil.WriteFile(cfg, []byte("-size (bytes) 1\n"), 0644))

	runner := NewRunner(dir, "cacti", 0)
	assert.Equal(t, filepath.Join(dir, "cacti"), runner.BinaryPath())
	require.NoError(t, runner.Run(context.Background(), cfg, out))

	data, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "infile "+cfg)
	assert.Contains(t, string(data), "\n[stderr]\noops")
}

func TestRunnerFailureKeepsOutput(t *testing.T) {
	dir, err := ioutil.TempDir("", "cacti")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(dir) }()
	writeFakeCacti(t, dir, "3")

	cfg := filepath.Join(dir, "b.cfg")
	out := filepath.Join(dir, "b.txt")
	require.NoError(t, ioutil.WriteFile(cfg, nil, 0644))

	err = NewRunner(dir, "cacti", 0).Run(context.Background(), cfg, out)
	require.Error(t, err)
	assert.Equal(t, ErrToolFailed, errors.Cause(err))
	data, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "oops")
}

func TestRunnerMissingBinary(t *testing.T) {
	dir, err := ioutil.TempDir("", "cacti")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(dir) }()

	err = NewRunner(dir, "cacti", 0).Run(context.Background(), filepath.Join(dir, "c.cfg"), filepath.Join(dir, "c.txt"))
	require.Error(t, err)
	assert.Equal(t, ErrToolFailed, errors.Cause(err))
}
