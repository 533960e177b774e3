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

	"github.com/spf13/cobra"
	"golang.org/x/net/context"

	"github.com/gostor/gotgt-async-core/pkg/api"
	"github.com/gostor/gotgt-async-core/pkg/api/client"
)

func newRemoveCommand(cli *client.Client) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "rm",
		Short: "Remove an object",
		Long:  ``,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cmd.UsageString())
		},
	}
	cmd.AddCommand(
		newRemoveDeviceCmd(cli),
	)
	return cmd
}

func newRemoveDeviceCmd(cli *client.Client) *cobra.Command {
	opts := api.DeviceRemoveOptions{}
	var cmd = &cobra.Command{
		Use:   "device",
		Short: "Remove a device from gotgt",
		Long:  `Drain the device's in-flight commands and close its backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return removeDevice(cli, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Name, "name", "", "Specify device name")
	flags.BoolVar(&opts.Force, "force", false, "Send force=1 with the request (the daemon still drains in-flight commands first)")
	return cmd
}

func removeDevice(cli *client.Client, opts api.DeviceRemoveOptions) error {
	err := cli.DeviceRemove(context.Background(), opts)
	if err != nil {
		return err
	}
	fmt.Printf("Device %s successfully removed\n", opts.Name)
	return nil
}
