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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/context"
)

// serverResponse wraps the http response and the state the callers
// need from it.
type serverResponse struct {
	body       io.ReadCloser
	header     http.Header
	statusCode int
}

func (cli *Client) get(ctx context.Context, path string, query url.Values) (serverResponse, error) {
	return cli.sendRequest(ctx, "GET", path, query, nil)
}

func (cli *Client) post(ctx context.Context, path string, query url.Values, obj interface{}) (serverResponse, error) {
	return cli.sendRequest(ctx, "POST", path, query, obj)
}

func (cli *Client) delete(ctx context.Context, path string, query url.Values) (serverResponse, error) {
	return cli.sendRequest(ctx, "DELETE", path, query, nil)
}

func (cli *Client) sendRequest(ctx context.Context, method, path string, query url.Values, obj interface{}) (serverResponse, error) {
	resp := serverResponse{statusCode: -1}

	var body io.Reader
	if obj != nil {
		buf, err := json.Marshal(obj)
		if err != nil {
			return resp, err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, cli.getAPIPath(path, query), body)
	if err != nil {
		return resp, err
	}
	req = req.WithContext(ctx)
	req.URL.Host = cli.addr
	req.URL.Scheme = "http"
	if cli.proto == "unix" {
		// The socket path carries the endpoint; the HTTP host is a
		// placeholder the server never resolves.
		req.URL.Host = "unix.sock"
	}
	if obj != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cli.customHTTPHeaders {
		req.Header.Set(k, v)
	}

	res, err := cli.client.Do(req)
	if err != nil {
		return resp, err
	}
	resp.body = res.Body
	resp.header = res.Header
	resp.statusCode = res.StatusCode

	if resp.statusCode >= 400 {
		msg, _ := ioutil.ReadAll(res.Body)
		res.Body.Close()
		resp.body = nil
		return resp, fmt.Errorf("error from daemon: %s", strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func decodeBody(resp serverResponse, v interface{}) error {
	defer ensureReaderClosed(resp)
	return json.NewDecoder(resp.body).Decode(v)
}

func ensureReaderClosed(response serverResponse) {
	if response.body != nil {
		// Drain up to 512 bytes and close the body to let the transport
		// reuse the connection.
		io.CopyN(ioutil.Discard, response.body, 512)
		response.body.Close()
	}
}
