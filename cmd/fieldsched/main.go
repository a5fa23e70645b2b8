package main

import "github.com/example/field-scheduler/cmd"

func main() {
	cmd.Execute()
}
