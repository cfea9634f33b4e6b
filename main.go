package main

import (
	"github.com/foomo/helpboard/cmd"
)

func main() {
	cmd.Execute()
}
