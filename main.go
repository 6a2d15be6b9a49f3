// Package main is the entry point for the harvester binary.
package main

import "github.com/mkarlsen/biorxiv-harvester/cmd"

func main() {
	cmd.Execute()
}
