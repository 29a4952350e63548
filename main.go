package main

import "github.com/lepinkainen/bookfeed/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
