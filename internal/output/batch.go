package output

import (
	"github.com/pkg/errors"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
)

type pending struct {
	path    string
	data    []byte
	tmp     string
	backup  string // 原文件改名后的位置
	renamed bool
}

// Batch 收集一次流程的全部输出。Commit先写临时文件，全部成功后再依次改名。
// 改名阶段出错时，已改名的文件被恢复为原来的内容，不存在原文件的被删除。
type Batch struct {
	files  []*pending
	logger *log.Logger
}

func NewBatch() *Batch {
	return &Batch{
		logger: log.New(os.Stdout, "Output: ", log.Lmsgprefix|log.LstdFlags|log.Lshortfile),
	}
}

func (b *Batch) Add(path string, data []byte) {
	b.files = append(b.files, &pending{path: path, data: data})
}

func (b *Batch) AddTable(path string, t *Table) error {
	data, err := t.Bytes()
	if err != nil {
		return errors.Wrapf(err, "生成 %s 出错", path)
	}
	b.Add(path, data)
	return nil
}

func (b *Batch) cleanup() {
	for _, f := range b.files {
		if f.tmp != "" {
			_ = os.Remove(f.tmp)
			f.tmp = ""
		}
	}
}

// rollback 撤销已经完成的改名
func (b *Batch) rollback() {
	for _, f := range b.files {
		if f.renamed {
			if f.backup != "" {
				_ = os.Rename(f.backup, f.path)
			} else {
				_ = os.Remove(f.path)
			}
		} else if f.backup != "" {
			_ = os.Remove(f.backup)
		}
		f.backup = ""
		f.renamed = false
	}
	b.cleanup()
}

// moveAside 将已存在的目标文件改名到同目录下的备份文件
func (f *pending) moveAside() error {
	if _, err := os.Lstat(f.path); os.IsNotExist(err) {
		return nil
	}
	backup, err := ioutil.TempFile(filepath.Dir(f.path), "."+filepath.Base(f.path)+".old.*")
	if err != nil {
		return err
	}
	_ = backup.Close()
	f.backup = backup.Name()
	return os.Rename(f.path, f.backup)
}

func (b *Batch) Commit() error {
	for _, f := range b.files {
		dir := filepath.Dir(f.path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			b.cleanup()
			return errors.Wrapf(err, "创建目录 %s 出错", dir)
		}
		tmp, err := ioutil.TempFile(dir, "."+filepath.Base(f.path)+".*")
		if err != nil {
			b.cleanup()
			return errors.Wrapf(err, "创建临时文件出错")
		}
		f.tmp = tmp.Name()
		_, err = tmp.Write(f.data)
		closeErr := tmp.Close()
		if err == nil {
			err = closeErr
		}
		if err == nil {
			err = os.Chmod(f.tmp, 0644)
		}
		if err != nil {
			b.cleanup()
			return errors.Wrapf(err, "写入 %s 出错", f.path)
		}
	}
	for _, f := range b.files {
		if err := f.moveAside(); err != nil {
			b.rollback()
			return errors.Wrapf(err, "备份 %s 出错", f.path)
		}
		if err := os.Rename(f.tmp, f.path); err != nil {
			b.rollback()
			return errors.Wrapf(err, "写入 %s 出错", f.path)
		}
		f.tmp = ""
		f.renamed = true
	}
	for _, f := range b.files {
		if f.backup != "" {
			_ = os.Remove(f.backup)
		}
		f.backup = ""
		f.renamed = false
		b.logger.Printf("已写入 %s", f.path)
	}
	return nil
}
