package main

import "github.com/nfdrepairs/repair-ops/cmd"

func main() {
	cmd.Execute()
}
