package main

import (
	"os"

	"github.com/dawnkeeper/dawnkeeper/internal/cli"
)

func main() {
	cli.InitRoot()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
