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

// DeviceCreate opens a new device in the daemon.
func (cli *Client) DeviceCreate(ctx context.Context, req api.DeviceCreateRequest) (api.DeviceInfo, error) {
	var info api.DeviceInfo
	resp, err := cli.post(ctx, "/devices/create", nil, req)
	if err != nil {
		return info, err
	}
	err = decodeBody(resp, &info)
	return info, err
}
