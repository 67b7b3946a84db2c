package point

// StatusUpdate is one entry of an inbound status batch, as delivered
// by a source's push channel or produced by virtual-state expansion.
type StatusUpdate struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
	DPID  int    `json:"dpId,omitempty"`
}

// Codes returns the point codes of a batch, in batch order.
func Codes(batch []StatusUpdate) []string {
	out := make([]string, len(batch))
	for i, s := range batch {
		out[i] = s.Code
	}
	return out
}
