package main

import "github.com/jjenkins/cornerwise/cmd"

func main() {
	cmd.Execute()
}
