package application

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

type CallRecordFilter struct {
	Contract  string
	Method    string
	FromBlock *uint64
	Limit     int
}

func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > maxQueryLimit {
		return defaultQueryLimit
	}
	return limit
}
