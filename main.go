package main

import "maum-baedal-backend/cmd"

func main() {
	cmd.Run()
}
