// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package storage

import (
	"fmt"
	"os"
)

// Rotate renames path to the first unused numbered variant (path.1, path.2, ...)
// so existing rotations are never overwritten. Returns the new path and whether
// a rename happened. A missing file is not an error: there is nothing to rotate.
func Rotate(path string) (string, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("stat %s: %w", path, err)
	}

	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.%d", path, n)
		if _, err := os.Stat(candidate); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return "", false, fmt.Errorf("stat %s: %w", candidate, err)
		}
		if err := os.Rename(path, candidate); err != nil {
			return "", false, fmt.Errorf("rotate %s: %w", path, err)
		}
		return candidate, true, nil
	}
}
