// Command benchctl is the operator CLI for the persona bias benchmark
// harness: submit benchmark runs, drive the task queue, inspect progress.
package main

import (
	"fmt"
	"os"

	"github.com/ltreme/biasbench/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
