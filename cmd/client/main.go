package main

import "bankfeed/cmd/client/cmd"

func main() {
	cmd.Execute()
}
