package main

import (
	"fmt"

	"neorecon/internal/pkg/monitor"
	"neorecon/internal/pkg/version"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Long:  "显示 NeoRecon 的版本信息以及运行主机的基础信息。",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("NeoRecon %s\n", version.GetFullVersion())

		info, err := monitor.GetHostInfo()
		if err != nil {
			return
		}
		fmt.Printf("Host: %s (%s %s, %s/%s)\n", info.Hostname, info.Platform, info.PlatformVersion, info.OS, info.Arch)
		fmt.Printf("CPU Cores: %d, Memory: %d MiB\n", info.CPUCores, info.MemoryTotal/1024/1024)
	},
}
