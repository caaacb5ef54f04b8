package main

import (
	"context"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/uvccap/cmd"
	"github.com/smazurov/uvccap/internal/logging"
)

func main() {
	var cli humacli.CLI

	// Create Huma CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *cmd.Options) {
		// Load configuration and initialize logging for every command
		if err := cmd.Setup(opts, cli.Root()); err != nil {
			cmd.Exit(err)
		}
		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		hooks.OnStart(func() {
			logger.Debug("Starting capture", "device", opts.Device, "config", opts.Config)
			err := cmd.Run(ctx, opts)
			done <- err
			cmd.Exit(err)
		})

		// Interrupts cancel the capture; streaming is stopped and the
		// device closed before the process exits.
		hooks.OnStop(func() {
			logger.Info("Interrupted, stopping capture")
			cancel()
			cmd.Exit(<-done)
		})
	})

	root := cli.Root()
	root.Use = "uvccap"
	root.Short = "Capture raw frames from a V4L2 camera"
	root.Long = `Opens a V4L2 capture device, negotiates the image format, streams through ` +
		`memory-mapped buffers and writes each frame to <prefix>.<index>. ` +
		`The exit status is 0 on success or one of the error codes 100-119.`

	root.AddCommand(cmd.CreateInfoCmd())
	root.AddCommand(cmd.CreateDevicesCmd())
	root.AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}
