package test

import (
	"path/filepath"
	"runtime"
	"strings"
)

// GetDataDir 测试数据目录 test/data
func GetDataDir() string {
	_, file, _, _ := runtime.Caller(0)
	return file[:strings.LastIndex(file, "/")] + "/data"
}

// DataFile 测试数据目录下的文件路径
func DataFile(elem ...string) string {
	return filepath.Join(append([]string{GetDataDir()}, elem...)...)
}
