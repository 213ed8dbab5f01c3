package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mimicpipe/mapreduce"
)

func ageMapperFlags(cmd *cobra.Command, m *mapreduce.AgeMapper) {
	cmd.Flags().IntVar(&m.ReferenceYear, "year", mapreduce.DefaultReferenceYear, "reference year for the age calculation")
	cmd.Flags().IntVar(&m.DOBColumn, "dob-column", mapreduce.DefaultDOBColumn, "zero-based index of the DOB field")
}

func (a *app) mapperCmd() *cobra.Command {
	var m mapreduce.AgeMapper
	cmd := &cobra.Command{
		Use:   "mapper",
		Short: "Hadoop streaming mapper: PATIENTS lines on stdin, <age>\\t1 on stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mapreduce.StreamMap(cmd.Context(), os.Stdin, os.Stdout, m)
		},
	}
	ageMapperFlags(cmd, &m)
	return cmd
}

func (a *app) reducerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reducer",
		Short: "Hadoop streaming reducer: <age>\\t<count> on stdin, average on stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mapreduce.StreamReduce(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}

func (a *app) avgAgeCmd() *cobra.Command {
	var (
		m        mapreduce.AgeMapper
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "avg-age FILE...",
		Short: "Run the average-age job locally over PATIENTS files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := mapreduce.AverageAge(cmd.Context(), args, m, parallel)
			if err != nil {
				return err
			}
			a.log.Info("average age job done", zap.Int("files", len(args)), zap.Int64("ages", r.Count()))
			fmt.Println(r.Result())
			return nil
		},
	}
	ageMapperFlags(cmd, &m)
	cmd.Flags().IntVar(&parallel, "parallel", 4, "files mapped concurrently")
	return cmd
}
