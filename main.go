package main

import "github.com/nikogura/resumelm/cmd"

func main() {
	cmd.Execute()
}
