package main

import "ecoleta/cmd"

func main() {
	cmd.Execute()
}
