package main

import "github.com/askyhq/asky/cmd"

func main() {
	cmd.Execute()
}
