package main

import "github.com/sambabib/depconfusion/cmd"

func main() {
	cmd.Execute()
}
