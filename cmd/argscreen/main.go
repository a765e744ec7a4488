// cmd/argscreen/main.go
package main

import (
	"argscreen/internal/appshell"
	"argscreen/internal/app"
)

func main() { appshell.Main(app.RunContext) }
