package main

import "github.com/mpapenbr/crewchief/cmd"

func main() {
	cmd.Execute()
}
