package main

import (
	"context"
	"fmt"
	"io"

	"github.com/loykin/botvisor/pkg/client"
)

// runLifecycle issues start, stop or restart and prints the controller's reply.
// A refusal such as "Bot is already running" is printed and also returned so
// the command exits non-zero.
func runLifecycle(ctx context.Context, c *client.Client, op string, out io.Writer) error {
	ctx = contextOrBackground(ctx)
	var (
		m   client.MessageResponse
		err error
	)
	switch op {
	case "start":
		m, err = c.Start(ctx)
	case "stop":
		m, err = c.Stop(ctx)
	case "restart":
		m, err = c.Restart(ctx)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	if err != nil {
		if apiErr, ok := client.AsAPIError(err); ok && apiErr.Message != "" {
			_ = printJSON(out, client.MessageResponse{Message: apiErr.Message, Error: apiErr.Detail})
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return printJSON(out, m)
}

func runStatus(ctx context.Context, c *client.Client, detailed bool, out io.Writer) error {
	ctx = contextOrBackground(ctx)
	if detailed {
		info, err := c.ProcessInfo(ctx)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		return printJSON(out, info)
	}
	st, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return printJSON(out, st)
}
