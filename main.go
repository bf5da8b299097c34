package main

import "tunveil/internal/cli"

func main() {
	cli.Execute()
}
