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
	"github.com/packagewjx/cacheflow/internal/cacti"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"io/ioutil"
)

var (
	patchTemplate string
	patchOut      string
	patchLevel    string
	patchTarget   = cacti.Target{}
)

// patchCmd represents the patch command
var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "按指定的大小、块大小、相联度、工艺与层级改写CACTI配置模板",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := cacti.ParseLevel(patchLevel)
		if err != nil {
			return err
		}
		target := patchTarget
		target.Level = level
		if err = target.Validate(); err != nil {
			return err
		}
		data, err := ioutil.ReadFile(patchTemplate)
		if err != nil {
			return errors.Wrap(err, "读取模板出错")
		}
		text := cacti.Patch(string(data), target)
		if patchOut == "" {
			fmt.Print(text)
			return nil
		}
		return errors.Wrap(ioutil.WriteFile(patchOut, []byte(text), 0644), "写入配置出错")
	},
}

func init() {
	rootCmd.AddCommand(patchCmd)

	flags := patchCmd.Flags()
	flags.StringVarP(&patchTemplate, "template", "t", "", "CACTI配置模板")
	flags.IntVar(&patchTarget.SizeBytes, "size", 0, "缓存大小，字节")
	flags.IntVar(&patchTarget.BlockBytes, "block", 0, "块大小，字节")
	flags.IntVar(&patchTarget.Assoc, "assoc", 0, "相联度")
	flags.Float64Var(&patchTarget.TechNM, "tech", 32, "工艺，nm")
	flags.StringVar(&patchLevel, "level", "", "缓存层级，L1、L2或L3")
	flags.StringVarP(&patchOut, "out", "o", "", "输出路径，为空时输出到标准输出")
	for _, name := range []string{"template", "size", "block", "assoc", "level"} {
		_ = patchCmd.MarkFlagRequired(name)
	}
}
