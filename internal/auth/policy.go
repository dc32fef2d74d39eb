// Package auth decides which Telegram users may talk to the bot and
// which may manage the knowledge base.
package auth

import (
	"strconv"
	"strings"
)

// PolicyService holds the parsed user allowlists.
type PolicyService struct {
	AdminUserIDs   map[int64]bool
	AllowedUserIDs map[int64]bool // if empty, all users are allowed
}

// NewPolicyService parses comma-separated user id lists. Malformed
// entries are silently dropped.
func NewPolicyService(adminUserIDsStr, allowedUserIDsStr string) *PolicyService {
	return &PolicyService{
		AdminUserIDs:   parseIDList(adminUserIDsStr),
		AllowedUserIDs: parseIDList(allowedUserIDsStr),
	}
}

func parseIDList(s string) map[int64]bool {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids[id] = true
		}
	}
	return ids
}

// IsAdmin checks if a user may manage the knowledge base.
func (p *PolicyService) IsAdmin(userID int64) bool {
	return p.AdminUserIDs[userID]
}

// IsAllowed checks if a user may ask questions.
func (p *PolicyService) IsAllowed(userID int64) bool {
	// An empty allowed list means the bot is open to everyone
	if len(p.AllowedUserIDs) == 0 {
		return true
	}
	if p.IsAdmin(userID) {
		return true
	}
	return p.AllowedUserIDs[userID]
}
