package main

import "github.com/forPelevin/brollweave/internal/cli"

func main() {
	cli.Main()
}
