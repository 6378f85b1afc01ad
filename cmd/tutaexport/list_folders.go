package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listFoldersCmd = &cobra.Command{
	Use:   "list-folders",
	Short: "Print the mailbox's folder names, one per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		folders, err := client.ListFolders(cmd.Context())
		if err != nil {
			return err
		}
		for _, f := range folders {
			fmt.Println(f.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listFoldersCmd)
}
