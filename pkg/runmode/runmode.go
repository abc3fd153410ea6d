// Copyright 2023 The Kbridge Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package runmode implements the two mutually exclusive ways of attaching
// a payload to a ready proxy: an interactive shell relayed through the
// proxy's SOCKS port, or a container sharing the proxy's network namespace.
package runmode

import (
	"context"

	"github.com/kbridge/kbridge/pkg/model"
)

// Strategy attaches a payload to a ready proxy and blocks until it
// completes, producing an exit status.
type Strategy interface {
	Attach(ctx context.Context, proxy *model.ProxyContainer, overlay map[string]string) (int, error)
}
