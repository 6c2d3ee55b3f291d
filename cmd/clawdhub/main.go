package main

import "github.com/clawdhub/clawdhub/internal/cli"

func main() {
	cli.Execute()
}
