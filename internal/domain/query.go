package domain

// QueryRequest is the payload shared by the atomic and streaming query
// endpoints.
type QueryRequest struct {
	Query     string
	TopK      int
	SessionID SessionID
	Streaming bool
}

type SourceAttribution struct {
	Source  string
	Snippet string
	Score   float64
}

// QueryMeta is the structured metadata record attached to an answer: the
// trailing __META__ line of a stream, or the source/latency fields of an
// atomic response.
type QueryMeta struct {
	Sources   []SourceAttribution
	LatencyMS *float64
}

type QueryResponse struct {
	Answer string
	Meta   QueryMeta
}

// StreamFrame is one decoded unit of a streaming response: either a content
// fragment or the single metadata record.
type StreamFrame struct {
	Content string
	Meta    *QueryMeta
}

func (f StreamFrame) IsMeta() bool {
	return f.Meta != nil
}
