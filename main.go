package main

import "github.com/khrees2412/callscreen/cmd"

func main() {
	cmd.Execute()
}
