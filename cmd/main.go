package main

import (
	"os"

	"ndr-go/pkg/ndr"
)

func main() {
	tool := ndr.NewBenchTool()
	tool.Init()

	if rtn := tool.ParseArguments(); rtn < 0 {
		ndr.Log.Errorf("parse arguments error: %v", rtn)
		os.Exit(2)
	}

	if rtn := tool.RunBench(); rtn < 0 {
		ndr.Log.Errorf("run bench failed: %v", rtn)
		os.Exit(1)
	}
}
