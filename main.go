// main.go
//
// Entry point; the Cobra commands live in cmd/root.go

package main

import (
	"github.com/kadsim/kadsim/cmd"
)

func main() {
	cmd.Execute()
}
