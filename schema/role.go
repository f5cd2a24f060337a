// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "strings"

// Role is the viewer's role. It only matters to the sanitizer.
type Role string

const (
	RoleGuardian Role = "guardian"
	RoleParent   Role = "parent"
	RoleMember   Role = "member"
)

// IsGuardian reports whether r is the guardian/parent role, compared
// case-insensitively.
func (r Role) IsGuardian() bool {
	normalized := Role(strings.ToLower(strings.TrimSpace(string(r))))
	return normalized == RoleGuardian || normalized == RoleParent
}

// Viewer is the local user looking at the threads.
type Viewer struct {
	ID   UserID `json:"id"`
	Role Role   `json:"role"`
}
