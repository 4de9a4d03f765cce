package main

import "github.com/oshokin/smokewatch/cmd/smokewatch-server/cmd"

func main() {
	cmd.Execute()
}
