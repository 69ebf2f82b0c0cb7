package main

import "prload/cmd"

func main() {
	cmd.Execute()
}
