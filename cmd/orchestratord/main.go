package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/orchestrator/core/internal/pkg/logs"
)

func main() {
	cmd := &cli.Command{
		Name:  "orchestratord",
		Usage: "Conversational agent orchestration runtime",
		Commands: []*cli.Command{
			gwHwd.cmd(),
			msgHwd.cmd(),
			cronjobHwd.cmd(),
			onboardHwd.cmd(),
			updateHwd.cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logs.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}
