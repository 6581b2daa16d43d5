// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import "fmt"

func errAlreadyRegistered(name string) error {
	return fmt.Errorf("metrics: gatherer %q already registered", name)
}
