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
	"golang.org/x/net/context"

	"github.com/gostor/gotgt-async-core/pkg/api"
)

// DeviceLock asks the daemon to (re)acquire the exclusive lock for a
// device, as after an HA failover.
func (cli *Client) DeviceLock(ctx context.Context, name string) (api.DeviceLockResponse, error) {
	var out api.DeviceLockResponse
	resp, err := cli.post(ctx, "/devices/"+name+"/lock", nil, nil)
	if err != nil {
		return out, err
	}
	err = decodeBody(resp, &out)
	return out, err
}
