package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ceyewan/bfametrics/bfa"
	"github.com/ceyewan/bfametrics/cause"
)

func namesCmd() *cobra.Command {
	var (
		job        string
		categories []string
	)
	cmd := &cobra.Command{
		Use:   "names <cause>",
		Short: "Print the metric names a cause increments",
		Args:  cobra.ExactArgs(1),
		// 纯计算，不需要加载配置
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cause.New(args[0], categories...)
			names := bfa.NamesFor(c)
			if job != "" {
				names = bfa.NamesForJob(c, job)
			}
			for _, name := range names.Sorted() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "job name for job scoped metrics")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "cause category, repeatable")
	return cmd
}
