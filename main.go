package main

import "github.com/notargets/godofs/cmd"

func main() {
	cmd.Execute()
}
