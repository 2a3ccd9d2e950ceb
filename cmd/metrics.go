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
	"fmt"
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/packagewjx/cacheflow/internal/metrics"
	"github.com/spf13/cobra"
	"log"
)

var metricsPaths = &metrics.Paths{}
var metricsProc string

// metricsCmd represents the metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "从gem5运行目录提取性能指标，输出指标表、汇总表、图片与参数说明",
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, ok := core.RootConfig.Processor(metricsProc)
		if !ok {
			return fmt.Errorf("未配置的处理器 %s，可选 %v", metricsProc, core.RootConfig.ProcessorNames())
		}
		batch, summaries, err := metrics.Build(core.RootConfig, proc, metricsPaths)
		if err != nil {
			return err
		}
		if err = batch.Commit(); err != nil {
			return err
		}
		for _, s := range summaries {
			log.Printf("%s %s: IPC最佳 %dKB (%.6f)，1%%平台 %dKB", s.Proc, s.App, s.BestL1ByIPC, s.BestIPC,
				s.PlateauL1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)

	flags := metricsCmd.Flags()
	flags.StringVarP(&metricsProc, "proc", "p", "", "处理器名称，如A7、A15")
	flags.StringVarP(&metricsPaths.RunsBase, "runs-base", "r", "", "gem5运行目录的上级目录")
	flags.StringVar(&metricsPaths.OutCSV, "out-csv", "", "指标表输出路径")
	flags.StringVar(&metricsPaths.SummaryCSV, "summary-csv", "", "汇总表输出路径")
	flags.StringVar(&metricsPaths.FiguresDir, "figures-dir", "", "图片输出目录")
	flags.StringVar(&metricsPaths.ParamsTxt, "params-txt", "", "参数说明输出路径")
	for _, name := range []string{"proc", "runs-base", "out-csv", "summary-csv", "figures-dir", "params-txt"} {
		_ = metricsCmd.MarkFlagRequired(name)
	}
}
