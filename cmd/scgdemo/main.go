// Command scgdemo drives the six literal end-to-end scenarios of
// spec.md #8 against the syscall graph engine, as a hands-on companion to
// the library packages under internal/ and pkg/.
package main

import "github.com/perf-analysis/cmd/scgdemo/cmd"

func main() {
	cmd.Execute()
}
