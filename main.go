package main

import "github.com/relaykit/aigateway/cmd"

func main() {
	cmd.Execute()
}
