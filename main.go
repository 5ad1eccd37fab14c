package main

import "github.com/cfdworks/mgsolve/cmd"

func main() {
	cmd.Execute()
}
