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

package client

import (
	"net/url"

	"golang.org/x/net/context"

	"github.com/gostor/gotgt-async-core/pkg/api"
)

// DeviceRemove tears down a device in the daemon, draining its
// in-flight commands first.
func (cli *Client) DeviceRemove(ctx context.Context, options api.DeviceRemoveOptions) error {
	query := url.Values{}
	if options.Force {
		query.Set("force", "1")
	}
	resp, err := cli.delete(ctx, "/devices/"+options.Name, query)
	ensureReaderClosed(resp)
	return err
}
