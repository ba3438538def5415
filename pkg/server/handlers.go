package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/dd0wney/cluso-logstage/pkg/columnar"
	"github.com/dd0wney/cluso-logstage/pkg/logging"
	"github.com/dd0wney/cluso-logstage/pkg/server/middleware"
	"github.com/dd0wney/cluso-logstage/pkg/validation"
	"github.com/dd0wney/cluso-logstage/pkg/writer"
)

// handleAppend stages every record batch of an Arrow IPC stream body.
// Batches before a failing one stay staged.
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	stream := r.PathValue("stream")
	if err := validation.ValidateStream(stream); err != nil {
		s.metrics.IngestRejected("invalid_stream")
		s.respondError(w, r, http.StatusBadRequest, err.Error(), "")
		return
	}

	rdr, err := ipc.NewReader(r.Body, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		s.metrics.IngestRejected(bodyRejectReason(err))
		s.respondBodyError(w, r, err)
		return
	}
	defer rdr.Release()

	resp := AppendResponse{
		Stream:    stream,
		SchemaKey: columnar.SchemaKey(rdr.Schema()),
		RequestID: middleware.GetRequestID(r),
	}
	for rdr.Next() {
		rec := rdr.Record()
		if err := s.registry.Append(stream, resp.SchemaKey, rec); err != nil {
			s.metrics.IngestRejected(writer.KindOf(err).String())
			s.respondWriteError(w, r, err)
			return
		}
		resp.Batches++
		resp.Rows += rec.NumRows()
	}
	if err := rdr.Err(); err != nil {
		s.metrics.IngestRejected(bodyRejectReason(err))
		s.respondBodyError(w, r, err)
		return
	}

	s.metrics.ObserveIngest(resp.Batches, resp.Rows)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	stream := r.PathValue("stream")
	if err := validation.ValidateStream(stream); err != nil {
		s.respondError(w, r, http.StatusBadRequest, err.Error(), "")
		return
	}
	if err := s.registry.DeleteStream(stream); err != nil {
		s.respondWriteError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, DeleteResponse{
		Stream:    stream,
		Deleted:   true,
		RequestID: middleware.GetRequestID(r),
	})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.FlushAll(); err != nil {
		s.respondWriteError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, FlushResponse{
		Flushed:   true,
		RequestID: middleware.GetRequestID(r),
	})
}

func (s *Server) handleWriters(w http.ResponseWriter, r *http.Request) {
	infos, err := s.registry.Snapshot()
	if err != nil {
		s.respondWriteError(w, r, err)
		return
	}
	if infos == nil {
		infos = []writer.SlotInfo{}
	}
	s.respondJSON(w, http.StatusOK, WritersResponse{Writers: infos, Count: len(infos)})
}

// statusForWriteError maps a registry error kind to an HTTP status.
func statusForWriteError(err error) int {
	switch writer.KindOf(err) {
	case writer.KindEncoding:
		return http.StatusUnprocessableEntity
	case writer.KindTablePoisoned, writer.KindSlotPoisoned:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondWriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForWriteError(err)
	kind := writer.KindOf(err).String()
	s.logger.Error("registry operation failed",
		logging.String("kind", kind),
		logging.RequestID(middleware.GetRequestID(r)),
		logging.Error(err))
	s.respondError(w, r, status, err.Error(), kind)
}

// respondBodyError reports an unreadable request body: 413 when the size
// limit was hit, 400 for anything that is not a valid IPC stream.
func bodyRejectReason(err error) string {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return "body_too_large"
	}
	return "invalid_body"
}

func (s *Server) respondBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.respondError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), "")
		return
	}
	s.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid Arrow IPC stream: %v", err), "")
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding JSON response", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message, kind string) {
	s.respondJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      status,
		Kind:      kind,
		RequestID: middleware.GetRequestID(r),
	})
}
