// cmd/argscreen-serve/main.go
package main

import (
	"argscreen/internal/appshell"
	"argscreen/internal/serveapp"
)

func main() { appshell.Main(serveapp.RunContext) }
