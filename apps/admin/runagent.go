package main

import (
	"context"
	"fmt"

	"github.com/trezcool/campus/core/fees"
)

// runAgent triggers a manual reconciliation pass; it bypasses the daily gate.
func (cli *commandLine) runAgent() error {
	entries, err := cli.agent.Run(context.Background(), fees.Now())
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("[%s] %s - %s: %s\n", e.Status, e.RanAt.Format("2006-01-02 15:04:05"), e.Title, e.Details)
	}
	return nil
}
