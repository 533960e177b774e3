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

	"github.com/gostor/gotgt-async-core/pkg/api/client"
)

func newLockCommand(cli *client.Client) *cobra.Command {
	var name string
	var cmd = &cobra.Command{
		Use:   "lock",
		Short: "Acquire a device's exclusive lock",
		Long:  `Drive exclusive-lock (re)acquisition for a device backed by a clustered store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := NoArgs(cmd, args); err != nil {
				return err
			}
			return lockDevice(cli, name)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "Specify device name")
	return cmd
}

func lockDevice(cli *client.Client, name string) error {
	res, err := cli.DeviceLock(context.Background(), name)
	if err != nil {
		return err
	}
	fmt.Printf("Device %s lock: %s\n", res.Name, res.Result)
	return nil
}
