package main

import "github.com/danielkucera/siomon/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
