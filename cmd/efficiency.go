/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"github.com/fsnotify/fsnotify"
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/packagewjx/cacheflow/internal/efficiency"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"os"
	"path/filepath"
	"time"
)

var (
	efficiencyPaths = &efficiency.Paths{}
	watchInputs     bool
)

const watchDelay = 500 * time.Millisecond

// efficiencyCmd represents the efficiency command
var efficiencyCmd = &cobra.Command{
	Use:   "efficiency",
	Short: "连接IPC与面积，计算面积效率，输出效率表、最佳配置表、图片与参数说明",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if len(efficiencyPaths.IPCCSV) == 0 {
			return fmt.Errorf("请通过--ipc-csv提供至少一个处理器的IPC表，如 A7=a7.csv,A15=a15.csv")
		}
		for proc := range efficiencyPaths.IPCCSV {
			if _, ok := core.RootConfig.Processor(proc); !ok {
				return fmt.Errorf("未配置的处理器 %s，可选 %v", proc, core.RootConfig.ProcessorNames())
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runEfficiency(); err != nil {
			return err
		}
		if !watchInputs {
			return nil
		}
		ctx, cancel := signalContext()
		defer cancel()
		return watchEfficiency(ctx)
	},
}

func runEfficiency() error {
	batch, rows, err := efficiency.Build(core.RootConfig, efficiencyPaths)
	if err != nil {
		return err
	}
	if err = batch.Commit(); err != nil {
		return err
	}
	sample := core.RootConfig.Efficiency.Sample
	if row, ok := efficiency.Find(rows, sample); ok {
		log.Printf("验证样本 %s/%s/%dKB: ipc=%.6f area=%.9f eff=%.9f", sample.Proc, sample.App, sample.L1KB,
			row.IPC, row.Area, row.Efficiency)
	}
	return nil
}

// watchEfficiency 输入表或配置文件变化后重新计算。重新计算失败时只记录日志，保留上一次的输出。
func watchEfficiency(ctx context.Context) error {
	logger := log.New(os.Stdout, "Watch: ", log.Lmsgprefix|log.LstdFlags|log.Lshortfile)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "创建文件监听出错")
	}
	defer func() {
		_ = watcher.Close()
	}()

	// 监听所在目录，编辑器保存时可能以新文件替换原文件
	tracked := make(map[string]struct{})
	files := efficiencyPaths.Inputs()
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		files = append(files, cfg)
	}
	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return errors.Wrapf(err, "获取 %s 绝对路径出错", f)
		}
		tracked[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "监听目录 %s 出错", dir)
		}
	}
	configFile, _ := filepath.Abs(viper.ConfigFileUsed())
	logger.Printf("正在监听 %d 个文件", len(tracked))

	var timer <-chan time.Time
	configChanged := false
	for {
		select {
		case <-ctx.Done():
			logger.Println("停止监听")
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Println("监听出错", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name, _ := filepath.Abs(event.Name)
			if _, ok := tracked[name]; !ok {
				continue
			}
			logger.Printf("%s 已更改", event.Name)
			if name == configFile {
				configChanged = true
			}
			// 合并短时间内的多次写入
			timer = time.After(watchDelay)
		case <-timer:
			timer = nil
			if configChanged {
				configChanged = false
				if err := reloadConfig(); err != nil {
					logger.Println("重新读取配置出错", err)
					continue
				}
			}
			if err := runEfficiency(); err != nil {
				logger.Println("重新计算出错，保留上一次的输出", err)
				continue
			}
			logger.Println("重新计算完成")
		}
	}
}

func init() {
	rootCmd.AddCommand(efficiencyCmd)

	flags := efficiencyCmd.Flags()
	flags.StringToStringVar(&efficiencyPaths.IPCCSV, "ipc-csv", nil, "每个处理器的IPC表，如 A7=a7.csv,A15=a15.csv")
	flags.StringVar(&efficiencyPaths.AreaCSV, "area-csv", "", "area流程输出的面积表")
	flags.StringVar(&efficiencyPaths.OutCSV, "out-csv", "", "效率表输出路径")
	flags.StringVar(&efficiencyPaths.BestCSV, "best-csv", "", "最佳配置表输出路径")
	flags.StringVar(&efficiencyPaths.FiguresDir, "figures-dir", "", "图片输出目录")
	flags.StringVar(&efficiencyPaths.ParamsTxt, "params-txt", "", "参数说明输出路径")
	flags.BoolVarP(&watchInputs, "watch", "w", false, "输入变化后自动重新计算")
	for _, name := range []string{"ipc-csv", "area-csv", "out-csv", "best-csv", "figures-dir", "params-txt"} {
		_ = efficiencyCmd.MarkFlagRequired(name)
	}
}
