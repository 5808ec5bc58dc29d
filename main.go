package main

import "github.com/ymgch/github-pokedex/cmd"

func main() {
	cmd.Execute()
}
