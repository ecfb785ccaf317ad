package main

import "github.com/convolang/convo/cmd"

var version = "v0.3.0"

func main() {
	cmd.Execute(version)
}
