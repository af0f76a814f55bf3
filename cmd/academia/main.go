package main

import "github.com/goliatone/academia/cmd/academia/cmd"

func main() {
	cmd.Execute()
}
