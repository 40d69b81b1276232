// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package cachestore

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the cache generation. The lifecycle controller threads one
// Version value through install and activation; eviction compares parsed
// (logical, Version) pairs structurally against the expected set.
type Version int

// Logical tier names. Every generation has exactly one tier per name.
const (
	TierShell   = "shell"
	TierRoutes  = "routes"
	TierContent = "content"
)

// LogicalTiers lists all logical tier names in priming order.
var LogicalTiers = []string{TierShell, TierRoutes, TierContent}

// TierName renders the on-disk name for a logical tier at a version,
// e.g. TierName("shell", 4) == "shell-v4".
func TierName(logical string, v Version) string {
	return fmt.Sprintf("%s-v%d", logical, v)
}

// ParseTierName splits an on-disk tier name back into its logical name and
// version. ok is false for names that do not follow the <logical>-v<N> form;
// activation treats those as stale and evicts them.
func ParseTierName(name string) (logical string, v Version, ok bool) {
	i := strings.LastIndex(name, "-v")
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(name[i+2:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return name[:i], Version(n), true
}
