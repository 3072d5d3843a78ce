package model

import (
	"fmt"
	"strings"
)

// BackendTarget names a storage backend. TargetAll is only valid as a read scope.
type BackendTarget int

const (
	TargetAll BackendTarget = iota
	TargetLocal
	TargetRemote
	TargetObject
)

// Targets returns every concrete backend in fixed iteration order.
// Later targets win when results are unioned by id.
func Targets() []BackendTarget {
	return []BackendTarget{TargetLocal, TargetRemote, TargetObject}
}

func (t BackendTarget) String() string {
	switch t {
	case TargetAll:
		return "All"
	case TargetLocal:
		return "Local"
	case TargetRemote:
		return "Remote"
	case TargetObject:
		return "Object"
	default:
		return fmt.Sprintf("BackendTarget(%d)", int(t))
	}
}

// ParseTarget accepts the lower-case names plus the aliases "github" and "s3".
func ParseTarget(s string) (BackendTarget, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return TargetAll, nil
	case "local":
		return TargetLocal, nil
	case "remote", "github":
		return TargetRemote, nil
	case "object", "s3":
		return TargetObject, nil
	}
	return TargetAll, fmt.Errorf("unknown storage target %q", s)
}

func (t BackendTarget) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(t.String())), nil
}

func (t *BackendTarget) UnmarshalText(b []byte) error {
	v, err := ParseTarget(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
