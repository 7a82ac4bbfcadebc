package main

import "github.com/lepinkainen/shelfmate/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
