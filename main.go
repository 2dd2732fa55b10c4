package main

import (
	"github.com/openinsure/irdai-harvester/cmd"
)

func main() {
	cmd.Execute()
}
