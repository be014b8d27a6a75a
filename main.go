package main

import "github.com/relloyd/sparkify/cmd"

func main() {
	cmd.Execute()
}
