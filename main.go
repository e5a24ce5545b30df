package main

import (
	"github.com/gpufand/gpufand/cmd"
)

func main() {
	cmd.Execute()
}
