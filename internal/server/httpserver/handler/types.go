package handler

import (
	"time"

	"github.com/yndnr/chunkmeta-go/internal/infra/buildinfo"
	"github.com/yndnr/chunkmeta-go/internal/storage/checkpoint"
	"github.com/yndnr/chunkmeta-go/internal/storage/oplog"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// CheckpointStatus is the response body for GET /admin/v1/checkpoint.
type CheckpointStatus struct {
	// Latest is nil before the first checkpoint.
	Latest *checkpoint.Info `json:"latest,omitempty"`
	Log    oplog.State      `json:"log"`
	// Pending is the number of log entries after the latest checkpoint.
	Pending int64 `json:"pending"`
}

// StatusResponse is the response body for GET /admin/v1/status.
type StatusResponse struct {
	Build       buildinfo.Info `json:"build"`
	Ready       bool           `json:"ready"`
	Error       string         `json:"error,omitempty"`
	Leaves      int            `json:"leaves"`
	Sections    map[string]int `json:"sections"`
	LogBytes    int64          `json:"log_bytes"`
	LogSegments int            `json:"log_segments"`
	Log         oplog.State    `json:"log"`
}
