package main

import (
	"os"

	"github.com/spf13/cobra"

	"mimicpipe/convert"
	"mimicpipe/hdfs"
)

func (a *app) dialHDFS(overwrite bool) (*hdfs.Uploader, func() error, error) {
	client, err := hdfs.Dial(hdfs.Config{Namenode: a.cfg.HDFS.Namenode, User: a.cfg.HDFS.User})
	if err != nil {
		return nil, nil, err
	}
	u := &hdfs.Uploader{
		FS:        client,
		Root:      a.cfg.HDFS.Root,
		Overwrite: overwrite,
		Logger:    a.log,
	}
	return u, client.Close, nil
}

func (a *app) putCmd() *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Upload converted files to <root>/<table>/ on HDFS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := a.selectedTables()
			if err != nil {
				return err
			}
			u, closeFn, err := a.dialHDFS(overwrite)
			if err != nil {
				return err
			}
			defer closeFn()

			for _, t := range tables {
				local := convert.OutputPath(a.cfg.OutputDir, t, a.outputFormat())
				if _, err := u.Put(cmd.Context(), local, t); err != nil {
					return err
				}
			}
			entries, err := u.List(tables)
			if err != nil {
				return err
			}
			hdfs.PrintList(os.Stdout, entries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace files that already exist")
	return cmd
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List uploaded table files on HDFS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := a.selectedTables()
			if err != nil {
				return err
			}
			u, closeFn, err := a.dialHDFS(false)
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := u.List(tables)
			if err != nil {
				return err
			}
			hdfs.PrintList(os.Stdout, entries)
			return nil
		},
	}
}
