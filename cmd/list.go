/*
Copyright 2016 The GoStor Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/net/context"

	"github.com/gostor/gotgt-async-core/pkg/api/client"
)

func newListCommand(cli *client.Client) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "list",
		Short: "List object(s)",
		Long:  ``,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cmd.UsageString())
		},
	}
	cmd.AddCommand(
		newListDeviceCmd(cli),
	)
	return cmd
}

func newListDeviceCmd(cli *client.Client) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "device",
		Short: "List device(s) of gotgt",
		Long:  ``,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := NoArgs(cmd, args); err != nil {
				return err
			}
			return listDevices(cli)
		},
	}
	return cmd
}

func listDevices(cli *client.Client) error {
	results, err := cli.DeviceList(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 20, 1, 3, ' ', 0)
	fmt.Fprintln(w, "DEVICE NAME\tSIZE\tBLOCK\tLOCK\tIN-FLIGHT")
	for _, dev := range results {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d\n",
			dev.Name, dev.SizeBytes, dev.BlockSize, dev.LockState, dev.InFlight)
	}
	w.Flush()
	return nil
}
