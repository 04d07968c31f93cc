package main

import "github.com/xela07ax/zkspend-gateway/internal/cli"

func main() {
	cli.Execute()
}
