package solgate

import (
	"strings"
)

// IsAlreadyProcessedError reports whether err says the network already
// accepted the transaction, in which case the action most likely succeeded
// on an earlier attempt.
func IsAlreadyProcessedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already been processed") ||
		strings.Contains(msg, "alreadyprocessed")
}
