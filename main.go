package main

import "github.com/cameronsjo/purser/internal/cmd"

func main() {
	cmd.Execute()
}
