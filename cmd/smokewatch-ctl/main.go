package main

import "github.com/oshokin/smokewatch/cmd/smokewatch-ctl/cmd"

func main() {
	cmd.Execute()
}
