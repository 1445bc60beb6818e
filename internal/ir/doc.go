// Package ir provides the shared data types for linkboard.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - votes and indices are integers
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - Command identity is content-addressed (see hash.go)
package ir
