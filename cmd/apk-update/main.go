package main

import "github.com/kolbasa/apk-update/cmd/apk-update/cmd"

func main() {
	cmd.Execute()
}
