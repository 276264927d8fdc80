package main

import (
	"github.com/Kohei-Wada/taskdog-sub001/internal/build"
	"github.com/Kohei-Wada/taskdog-sub001/internal/cmd"
)

var version = "dev"

func main() {
	build.Version = version
	cmd.Execute()
}
