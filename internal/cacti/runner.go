package cacti

import (
	"bytes"
	"context"
	"github.com/pkg/errors"
	"io/ioutil"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var ErrToolFailed = errors.New("CACTI运行失败")

// Runner 执行一次CACTI，并将输出写到reportPath
type Runner interface {
	Run(ctx context.Context, cfgPath, reportPath string) error
	BinaryPath() string
}

// NewRunner CACTI需要在自己的目录中运行，才能找到其依赖的工艺参数文件
// binary为相对路径时相对于cactiDir
func NewRunner(cactiDir, binary string, timeout time.Duration) Runner {
	if !filepath.IsAbs(binary) {
		binary = filepath.Join(cactiDir, binary)
	}
	// 子进程先切换到cactiDir再执行，相对路径会失效
	if abs, err := filepath.Abs(binary); err == nil {
		binary = abs
	}
	return &execRunner{
		dir:     cactiDir,
		binary:  binary,
		timeout: timeout,
		logger:  log.New(os.Stdout, "Cacti: ", log.Lmsgprefix|log.LstdFlags|log.Lshortfile),
	}
}

type execRunner struct {
	dir     string
	binary  string
	timeout time.Duration
	logger  *log.Logger
}

var _ Runner = &execRunner{}

func (r *execRunner) BinaryPath() string {
	return r.binary
}

func (r *execRunner) Run(ctx context.Context, cfgPath, reportPath string) error {
	cfgPath, err := filepath.Abs(cfgPath)
	if err != nil {
		return errors.Wrap(err, "获取配置文件绝对路径出错")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.binary, "-infile", cfgPath)
	cmd.Dir = r.dir
	stdout := bytes.NewBuffer(make([]byte, 0, 4096))
	stderr := bytes.NewBuffer(make([]byte, 0, 1024))
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	r.logger.Printf("运行 %s", strings.Join(cmd.Args, " "))
	runErr := cmd.Run()

	output := stdout.String()
	if stderr.Len() != 0 {
		output += "\n[stderr]\n" + stderr.String()
	}
	// 失败时同样保留输出用于排查
	if err := ioutil.WriteFile(reportPath, []byte(output), 0644); err != nil {
		return errors.Wrapf(err, "写入CACTI输出 %s 出错", reportPath)
	}
	if runErr != nil {
		return errors.Wrapf(ErrToolFailed, "%s -> %s: %v", filepath.Base(cfgPath), filepath.Base(reportPath), runErr)
	}
	return nil
}
