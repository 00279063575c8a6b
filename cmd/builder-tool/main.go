package main

import "github.com/polarsignals/colbuild/cmd/builder-tool/cmd"

func main() {
	cmd.Execute()
}
