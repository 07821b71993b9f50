// Command realctl runs maintenance jobs against a deployment and replays
// change-stream batches.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/realsocial/real/config"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "realctl:", err)
		os.Exit(1)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:        "realctl",
		Usage:       "Operate a REAL deployment",
		Description: `Runs the scheduled jobs on demand and replays change-stream
		batches through the reactor.

		Configuration is read the same way as the Lambda functions: an
		optional TOML file named by ` + config.FileEnv + `, then environment
		variables such as TABLE_NAME and AWS_REGION.`,
		Commands: []*cli.Command{
			deflateCmd(),
			expireCmd(),
			replayCmd(),
		},
		Action: func(c *cli.Context) error {
			return cli.ShowAppHelp(c)
		},
	}
}
