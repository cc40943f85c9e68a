package main

import (
	"context"
	"fmt"

	"github.com/trezcool/campus/core/fees"
)

// recalc reconciles every account on the spot, without audit entries.
func (cli *commandLine) recalc() error {
	ctx := context.Background()

	accounts, err := cli.feeSvc.RecalcAll(ctx, fees.Now())
	if err != nil {
		return err
	}

	sum, err := cli.feeSvc.Summarize(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Reconciled %d account(s): %d CLEAR, %d DUE, %d OVERDUE\n",
		len(accounts), sum.Clear, sum.Due, sum.Overdue)
	fmt.Printf("Total payable: %s | paid: %s | due: %s\n",
		sum.TotalPayable.StringFixed(2), sum.TotalPaid.StringFixed(2), sum.TotalDue.StringFixed(2))
	return nil
}
