package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/net/context"

	"github.com/gostor/gotgt-async-core/pkg/api/client"
	"github.com/gostor/gotgt-async-core/pkg/version"
)

func newVersionCommand(cli *client.Client) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of gotgt",
		Long:  ``,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Gotgt %s\n", version.VERSION)
			if remote, err := cli.ServerVersion(context.Background()); err == nil {
				fmt.Printf("Daemon %s (api %s)\n", remote.Version, remote.APIVersion)
			}
		},
	}
	return cmd
}
