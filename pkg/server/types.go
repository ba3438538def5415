package server

import "github.com/dd0wney/cluso-logstage/pkg/writer"

// AppendResponse reports what one ingest request staged.
type AppendResponse struct {
	Stream    string `json:"stream"`
	SchemaKey string `json:"schema_key"`
	Batches   int    `json:"batches"`
	Rows      int64  `json:"rows"`
	RequestID string `json:"request_id,omitempty"`
}

// DeleteResponse acknowledges a stream deletion.
type DeleteResponse struct {
	Stream    string `json:"stream"`
	Deleted   bool   `json:"deleted"`
	RequestID string `json:"request_id,omitempty"`
}

// FlushResponse acknowledges a flush.
type FlushResponse struct {
	Flushed   bool   `json:"flushed"`
	RequestID string `json:"request_id,omitempty"`
}

// WritersResponse lists the writer table.
type WritersResponse struct {
	Writers []writer.SlotInfo `json:"writers"`
	Count   int               `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
