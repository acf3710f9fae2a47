// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"medal/internal/decompiler"
	"medal/internal/lifter"
	"medal/internal/pipelineerr"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: medal-cli <file.luac>")
		os.Exit(1)
	}

	path := os.Args[1]
	bytecode, err := os.ReadFile(path)
	if err != nil {
		color.Red("failed to read file: %s", err)
		os.Exit(1)
	}

	var lift lifter.Lifter = lifter.Unimplemented{}
	prog, err := lift.Lift(bytecode)
	if err != nil {
		reportPipelineError(path, err)
		os.Exit(1)
	}

	out, err := decompiler.New().Decompile(prog)
	if err != nil {
		reportPipelineError(path, err)
		os.Exit(1)
	}

	fmt.Print(out)
	color.Green("successfully decompiled %s", path)
}

// reportPipelineError prints a kanso-cli-style colorized diagnostic for a
// pipelineerr.Error, falling back to the bare error for anything else.
func reportPipelineError(path string, err error) {
	var pe *pipelineerr.Error
	if ok := asPipelineErr(err, &pe); ok {
		color.Red("%s", pe.Error())
		color.HiRed("while decompiling %s", path)
		return
	}
	color.Red("unexpected error: %s", err)
}

func asPipelineErr(err error, target **pipelineerr.Error) bool {
	pe, ok := err.(*pipelineerr.Error)
	if !ok {
		return false
	}
	*target = pe
	return true
}
