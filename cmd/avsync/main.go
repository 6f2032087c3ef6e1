// Package main provides the avsync command line entry point.
package main

import "github.com/maauso/avsync/internal/cli"

func main() {
	cli.Main()
}
