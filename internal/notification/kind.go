package notification

import (
	"errors"
	"fmt"
)

// Kind names a notification category. It doubles as the request name a
// plugin sees.
type Kind string

const (
	AgentStatusChanged Kind = "agent-status-changed"
	StageStatusChanged Kind = "stage-status-changed"
)

var ErrUnknownKind = errors.New("unknown notification kind")

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{AgentStatusChanged, StageStatusChanged}
}

// ParseKind validates a request name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string { return string(k) }
