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
	"github.com/packagewjx/cacheflow/internal/cacti"
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/packagewjx/cacheflow/internal/sweep"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
)

var (
	cactiDir string
	areaOut  string
)

// areaCmd represents the area command
var areaCmd = &cobra.Command{
	Use:   "area",
	Short: "运行CACTI面积扫描，输出归一化面积表、参数说明、manifest与图片",
	Long: `对每个处理器先计算固定的L2面积，再依次计算扫描的每个L1大小。
生成的CACTI配置位于<out-dir>/generated_cfg，CACTI原始输出位于<out-dir>/cacti_outputs，
任意一次CACTI运行失败或输出校验不通过时，不会生成任何汇总文件。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config := &sweep.Config{
			CactiDir:   cactiDir,
			WorkDir:    areaOut,
			Processors: core.RootConfig.Processors,
			Cacti:      core.RootConfig.Cacti,
		}
		runner := cacti.NewRunner(cactiDir, config.Cacti.Binary, config.Cacti.Timeout)

		ctx, cancel := signalContext()
		defer cancel()
		res, err := sweep.New(config, runner).Run(ctx)
		if err != nil {
			return err
		}
		batch, err := res.Outputs(config, runner.BinaryPath(), areaOut,
			core.RootConfig.Chart.WidthInch, core.RootConfig.Chart.HeightInch)
		if err != nil {
			return err
		}
		if err = batch.Commit(); err != nil {
			return err
		}
		log.Printf("面积扫描完成，共 %d 个L1配置点", len(res.Rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(areaCmd)

	flags := areaCmd.Flags()
	flags.StringVarP(&cactiDir, "cacti-dir", "d", "", "CACTI所在目录，模板文件也在此目录")
	flags.StringVarP(&areaOut, "out-dir", "o", "", "输出目录")
	_ = areaCmd.MarkFlagRequired("cacti-dir")
	_ = areaCmd.MarkFlagRequired("out-dir")

	flags.String("binary", core.RootConfig.Cacti.Binary, "CACTI可执行文件，相对路径相对于cacti-dir")
	_ = viper.BindPFlag("cacti.binary", flags.Lookup("binary"))
	flags.Duration("timeout", core.RootConfig.Cacti.Timeout, "单次CACTI运行的超时时间，0为不限制")
	_ = viper.BindPFlag("cacti.timeout", flags.Lookup("timeout"))
}
