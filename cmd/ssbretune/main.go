package main

import (
	"ssbretune/cli"
)

func main() {
	cli.Execute()
}
