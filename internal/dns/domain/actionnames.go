package domain

// Names a CNAME points at to encode a non-custom action in a policy zone.
const (
	PassthruName = "rpz-passthru."
	DropName     = "rpz-drop."
	TCPOnlyName  = "rpz-tcp-only."
	NXDOMAINName = "."
	NODATAName   = "*."
)

// Labels that mark address and name-server triggers under a zone origin.
const (
	ClientIPLabel   = "rpz-client-ip"
	ResponseIPLabel = "rpz-ip"
	NSDNameLabel    = "rpz-nsdname"
	NSIPLabel       = "rpz-nsip"
)

// ActionName returns the CNAME target that encodes k. Custom has no such
// name and reports false, as does any value outside the defined set.
func ActionName(k PolicyKind) (string, bool) {
	switch k {
	case PolicyNoAction:
		return PassthruName, true
	case PolicyDrop:
		return DropName, true
	case PolicyTruncate:
		return TCPOnlyName, true
	case PolicyNXDOMAIN:
		return NXDOMAINName, true
	case PolicyNODATA:
		return NODATAName, true
	default:
		return "", false
	}
}

// KindForAction maps a canonical CNAME target back to the action it encodes.
// Any other target is a custom rewrite.
func KindForAction(target string) PolicyKind {
	switch target {
	case PassthruName:
		return PolicyNoAction
	case DropName:
		return PolicyDrop
	case TCPOnlyName:
		return PolicyTruncate
	case NXDOMAINName:
		return PolicyNXDOMAIN
	case NODATAName:
		return PolicyNODATA
	default:
		return PolicyCustom
	}
}
