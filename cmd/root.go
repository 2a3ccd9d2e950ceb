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
	"github.com/packagewjx/cacheflow/internal/core"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"os"
	"os/signal"
	"syscall"
)

var configPath string

// 配置文件中出现的列表整体替换默认值，而不是按下标合并
var replacedLists = []string{"processors", "apps", "stats.keys"}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cacheflow",
	Short: "缓存配置扫描的后处理工具",
	Long: `本程序对L1缓存大小扫描的结果进行后处理，包括三个流程：
1. metrics: 从gem5的stats.txt中提取IPC、周期数、缓存缺失率和分支预测指标，汇总每个应用的最佳L1大小。
2. area: 生成CACTI配置并运行CACTI，校验输出后计算归一化到目标工艺的核心面积。
3. efficiency: 连接IPC与面积，计算面积效率(IPC/mm^2)。
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return readConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// unmarshalConfig 将viper中的配置覆盖到默认配置上并校验
func unmarshalConfig() error {
	for _, key := range replacedLists {
		if !viper.IsSet(key) {
			continue
		}
		switch key {
		case "processors":
			core.RootConfig.Processors = nil
		case "apps":
			core.RootConfig.Apps = nil
		case "stats.keys":
			core.RootConfig.Stats.Keys = nil
		}
	}
	if err := viper.UnmarshalExact(core.RootConfig); err != nil {
		return errors.Wrap(err, "读取配置出错")
	}
	return core.RootConfig.Check()
}

func readConfig() error {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("cacheflow")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/cacheflow")
	}

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return errors.Wrap(err, "读取配置出错")
		}
		log.Println("未找到配置文件，使用默认配置")
	}
	if err = unmarshalConfig(); err != nil {
		return err
	}
	log.Println("读取到配置", core.RootConfig)

	return nil
}

// reloadConfig 配置文件变化后重新读取
func reloadConfig() error {
	if viper.ConfigFileUsed() == "" {
		return nil
	}
	if err := viper.ReadInConfig(); err != nil {
		return errors.Wrap(err, "读取配置出错")
	}
	if err := unmarshalConfig(); err != nil {
		return err
	}
	log.Println("读取到配置", core.RootConfig)
	return nil
}

// signalContext 收到SIGINT或SIGTERM时取消
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("收到信号 %v，正在退出", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
