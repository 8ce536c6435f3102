package main

import "github.com/assignwork/assignwork/cmd"

func main() {
	cmd.Execute()
}
