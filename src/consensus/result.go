package consensus

// Result is the outcome of a request. It is built once and never modified.
type Result struct {
	Accepted bool
	Value    Value
	Agreeing int
	Queried  int
	Total    int

	// Replies are the verified replies that agreed on Value.
	Replies []*VerifiedReply
}

// Rejected reports whether the nodes agreed to refuse the request.
func (r *Result) Rejected() bool {
	return r.Accepted && r.Value.Kind == KindReject
}

// Metadata returns the most recent ledger position among the agreeing
// replies.
func (r *Result) Metadata() Metadata {
	var best Metadata
	for i, rep := range r.Replies {
		m := rep.Metadata()
		if i == 0 || m.LastSeqNo > best.LastSeqNo || (m.LastSeqNo == best.LastSeqNo && m.LastTxnTime > best.LastTxnTime) {
			best = m
		}
	}
	return best
}
