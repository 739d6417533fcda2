package utils

import "strings"

// MatchAction checks whether an action name matches a grant pattern.
// Patterns may be:
//   - The exact action name.
//   - The global wildcard "*", matching every action.
//   - A namespace wildcard such as "doc.*", matching any action in that
//     dotted namespace ("doc.read", "doc.share.link", ...).
func MatchAction(action, pattern string) bool {
	if pattern == "*" || pattern == action {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(action, prefix)
	}
	return false
}
