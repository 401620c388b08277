// cmd/annovcf/main.go
package main

import (
	"annovcf/internal/app"
	"annovcf/internal/appshell"
)

func main() { appshell.Main(app.RunContext) }
