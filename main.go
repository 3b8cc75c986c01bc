package main

import "github.com/composureai/perfectstorm/cmd"

var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
