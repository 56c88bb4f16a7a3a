package main

import "github.com/MrEthical07/authpipe/cmd/authpipe/cmd"

func main() {
	cmd.Execute()
}
