// Package main is the entry point of the nrmac command line tool.
package main

import "github.com/sarchlab/nrmac/nrmac/cmd"

func main() {
	cmd.Execute()
}
