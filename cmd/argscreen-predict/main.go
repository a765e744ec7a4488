// cmd/argscreen-predict/main.go
package main

import (
	"argscreen/internal/appshell"
	"argscreen/internal/predictapp"
)

func main() { appshell.Main(predictapp.RunContext) }
