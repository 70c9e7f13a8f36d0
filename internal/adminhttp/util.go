// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adminhttp

import (
	"fmt"
	"time"
)

func errUnknownCapKind(kind string) error {
	return fmt.Errorf("install-capability: unknown cap_kind %q", kind)
}

func nowRFC3339() string {
	return time.Now().Format(time.RFC3339)
}
