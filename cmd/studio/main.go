package main

import (
	"context"

	"github.com/dmorgan81/imagestudio/cmd"
	"github.com/dmorgan81/imagestudio/internal/credential"
	"github.com/spf13/cobra"
)

// apiKey is replaced at build time with -ldflags "-X main.apiKey=...".
var apiKey = credential.BuildPlaceholder

func main() {
	cobra.CheckErr(cmd.NewCLI(apiKey).ExecuteContext(context.Background()))
}
