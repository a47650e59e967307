package main

import "github.com/wkalt/teeql/cmd"

func main() {
	cmd.Execute()
}
