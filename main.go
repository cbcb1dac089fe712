package main

import "github.com/example/facelogin/cmd"

func main() {
	cmd.Execute()
}
