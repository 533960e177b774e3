//go:build !ceph
// +build !ceph

/*
Copyright 2018 The GoStor Authors All rights reserved.

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

// Package rbdstore registers the "ceph-rbd" backend when built with the
// ceph tag; without it the subtype stays unregistered and a device
// configured against it fails to open with an unknown-subtype error.
package rbdstore
