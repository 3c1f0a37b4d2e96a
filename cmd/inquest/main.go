package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "inquest"}

	root.AddCommand(serveCMD(), migrateCMD(), runCMD(), ingestCMD(), historyCMD(), statsCMD())
	_ = root.Execute()
}
