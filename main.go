package main

import "github.com/klasio/rollcall/cmd"

func main() {
	cmd.Execute()
}
