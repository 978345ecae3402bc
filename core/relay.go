package core

// OutcomeKind classifies a relay attempt
type OutcomeKind string

const (
	// OutcomeSuccess means the transaction was broadcast and confirmed
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeWarning means the network reported the transaction as already processed.
	// Callers should reconcile against chain state instead of retrying.
	OutcomeWarning OutcomeKind = "warning"

	// OutcomeError means the attempt failed and may be retried
	OutcomeError OutcomeKind = "error"
)

// RelayOutcome is the result of one relay attempt
type RelayOutcome struct {
	Kind      OutcomeKind
	Signature string // Network transaction id, set whenever one was assigned
	Message   string
	Err       error
}

// Succeeded reports whether the outcome is a success
func (o RelayOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// BlockhashContext is the recency context a confirmation is awaited against
type BlockhashContext struct {
	Blockhash            string
	LastValidBlockHeight uint64
}
