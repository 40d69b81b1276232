// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package supervisor

import "context"

// ServiceFunc adapts a run function to suture.Service.
type ServiceFunc struct {
	Name string
	Run  func(ctx context.Context) error
}

// Serve implements suture.Service.
func (s ServiceFunc) Serve(ctx context.Context) error {
	return s.Run(ctx)
}

// String names the service in supervisor logs.
func (s ServiceFunc) String() string {
	return s.Name
}
