package checkout

import "github.com/rs/xid"

const referencePrefix = "sneakpeak-"

// NewReference returns a globally unique, URL-safe order reference.
func NewReference() string {
	return referencePrefix + xid.New().String()
}
