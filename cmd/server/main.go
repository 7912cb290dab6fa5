package main

import "hrims/internal/app/server"

func main() {
	server.Run()
}
