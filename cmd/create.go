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

func newCreateCommand(cli *client.Client) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "create",
		Short: "Create a new object",
		Long:  ``,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cmd.UsageString())
		},
	}
	cmd.AddCommand(
		newCreateDeviceCmd(cli),
	)
	return cmd
}

func newCreateDeviceCmd(cli *client.Client) *cobra.Command {
	opts := api.DeviceCreateRequest{}
	var cmd = &cobra.Command{
		Use:   "device",
		Short: "Create a new device in gotgt",
		Long:  `Open a backend and export it as a new device.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := NoArgs(cmd, args); err != nil {
				return err
			}
			return createDevice(cli, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Name, "name", "", "Specify device name")
	flags.StringVar(&opts.Backend, "backend", "", "Backend URI, subtype/path[/opt=value,...]")
	flags.Uint32Var(&opts.BlockSize, "block-size", 0, "Block size in bytes (default 512)")
	flags.IntVar(&opts.Workers, "workers", 0, "Worker count for blocking backends")
	return cmd
}

func createDevice(cli *client.Client, opts api.DeviceCreateRequest) error {
	info, err := cli.DeviceCreate(context.Background(), opts)
	if err != nil {
		return err
	}
	fmt.Printf("Device %s created, %d LBAs of %d bytes\n", info.Name, info.NumLBAs, info.BlockSize)
	return nil
}
