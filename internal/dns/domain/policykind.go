package domain

import (
	"fmt"
	"strings"
)

// PolicyKind is the action a matched trigger prescribes.
type PolicyKind uint8

const (
	// PolicyNoAction lets resolution continue unchanged (rpz-passthru).
	PolicyNoAction PolicyKind = iota
	// PolicyDrop drops the query without answering.
	PolicyDrop
	// PolicyTruncate answers with TC set so the client retries over TCP.
	PolicyTruncate
	// PolicyNXDOMAIN synthesizes a name error.
	PolicyNXDOMAIN
	// PolicyNODATA synthesizes an empty answer.
	PolicyNODATA
	// PolicyCustom answers with the record carried by the policy.
	PolicyCustom
)

// String returns a stable string representation of the kind.
func (k PolicyKind) String() string {
	switch k {
	case PolicyNoAction:
		return "noaction"
	case PolicyDrop:
		return "drop"
	case PolicyTruncate:
		return "truncate"
	case PolicyNXDOMAIN:
		return "nxdomain"
	case PolicyNODATA:
		return "nodata"
	case PolicyCustom:
		return "custom"
	default:
		return fmt.Sprintf("PolicyKind(%d)", k)
	}
}

// IsValid reports whether k is one of the defined kinds.
func (k PolicyKind) IsValid() bool {
	return k <= PolicyCustom
}

// ParsePolicyKind converts a string into a PolicyKind (case-insensitive).
// "passthru" is accepted as an alias of "noaction".
func ParsePolicyKind(s string) (PolicyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "noaction", "passthru":
		return PolicyNoAction, nil
	case "drop":
		return PolicyDrop, nil
	case "truncate", "tcp-only":
		return PolicyTruncate, nil
	case "nxdomain":
		return PolicyNXDOMAIN, nil
	case "nodata":
		return PolicyNODATA, nil
	case "custom":
		return PolicyCustom, nil
	default:
		return 0, fmt.Errorf("unsupported PolicyKind: %q", s)
	}
}

// PolicyType records which trigger class produced a policy. It is
// informational and never influences matching.
type PolicyType uint8

const (
	PolicyTypeNone PolicyType = iota
	PolicyTypeClientIP
	PolicyTypeResponseIP
	PolicyTypeQName
	PolicyTypeNSDName
	PolicyTypeNSIP
)

func (t PolicyType) String() string {
	switch t {
	case PolicyTypeNone:
		return "none"
	case PolicyTypeClientIP:
		return "client-ip"
	case PolicyTypeResponseIP:
		return "response-ip"
	case PolicyTypeQName:
		return "qname"
	case PolicyTypeNSDName:
		return "nsdname"
	case PolicyTypeNSIP:
		return "nsip"
	default:
		return fmt.Sprintf("PolicyType(%d)", t)
	}
}
