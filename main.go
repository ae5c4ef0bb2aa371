package main

import "github.com/hamedydev/digitalme/cmd"

func main() {
	cmd.Execute()
}
