package domain

import "time"

// CallRecord is the audit entry written for every published contract call.
type CallRecord struct {
	Contract    string
	Method      string
	Selector    string
	PayloadSize int
	Items       int
	FromBlock   uint64
	ToBlock     uint64
	TraceID     string
	DecodedOK   bool
	Error       string
	ObservedAt  time.Time
}
