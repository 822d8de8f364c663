package main

import "github.com/kebairia/arkup/cmd"

func main() {
	cmd.Execute()
}
