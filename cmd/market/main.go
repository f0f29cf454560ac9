// Package main is the entry point for the market CLI.
package main

import "github.com/matmarket/market-cli/internal/cli"

func main() {
	cli.Execute()
}
