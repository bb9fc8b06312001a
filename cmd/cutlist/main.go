package main

import "github.com/forPelevin/cutlist/internal/cli"

func main() {
	cli.Main()
}
