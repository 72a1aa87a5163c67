package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/goodtune/sitefocus/internal/hostname"
	"github.com/goodtune/sitefocus/internal/metrics"
	"github.com/goodtune/sitefocus/internal/tracking"
)

// ErrUnknownCommand is returned for message types the router does not handle
var ErrUnknownCommand = errors.New("unknown command")

// errBadRequest marks malformed command payloads
var errBadRequest = errors.New("bad request")

// Command types
const (
	CommandToggleFocusMode   = "toggleFocusMode"
	CommandResetTrackingData = "resetTrackingData"
	CommandAddBlockedSite    = "addBlockedSite"
	CommandGetFocusMode      = "getFocusMode"
)

const maxBodyBytes = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := decodeBody(w, r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.dispatch(r.Context(), msg)

	label := msg.Type
	if errors.Is(err, ErrUnknownCommand) {
		label = "unknown"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CommandsTotal.WithLabelValues(label, result).Inc()

	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("type", msg.Type).Msg("Command failed")
		} else {
			s.logger.Warn().Err(err).Str("type", msg.Type).Msg("Command rejected")
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// dispatch routes a message to the supervisor
func (s *Server) dispatch(ctx context.Context, msg Message) (interface{}, error) {
	switch msg.Type {
	case CommandToggleFocusMode:
		if msg.Value == nil {
			return nil, fmt.Errorf("%w: %s requires a value", errBadRequest, msg.Type)
		}
		if err := s.supervisor.ToggleFocusMode(ctx, *msg.Value); err != nil {
			return nil, err
		}
		return FocusModeResponse{FocusMode: *msg.Value}, nil

	case CommandResetTrackingData:
		if err := s.supervisor.ResetTrackingData(ctx); err != nil {
			return nil, err
		}
		return StatusResponse{Status: "ok"}, nil

	case CommandAddBlockedSite:
		site, added, err := s.supervisor.AddBlockedSite(ctx, msg.Site)
		if err != nil {
			return nil, err
		}
		return AddBlockedSiteResponse{Site: site, Added: added}, nil

	case CommandGetFocusMode:
		enabled, err := s.supervisor.FocusMode(ctx)
		if err != nil {
			return nil, err
		}
		return FocusModeResponse{FocusMode: enabled}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Type)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownCommand),
		errors.Is(err, errBadRequest),
		errors.Is(err, hostname.ErrInvalid),
		errors.Is(err, hostname.ErrNoHostname):
		return http.StatusBadRequest
	case errors.Is(err, tracking.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleTabActivated(w http.ResponseWriter, r *http.Request) {
	var req TabActivatedRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	started, err := s.supervisor.TabActivated(r.Context(), req.TabID, req.URL)
	if err != nil {
		if statusFor(err) == http.StatusServiceUnavailable {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		// An untrackable URL is a normal outcome for the add-on
		writeJSON(w, http.StatusOK, TabResponse{Tracking: false, Reason: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, TabResponse{Tracking: started})
}

func (s *Server) handleTabRemoved(w http.ResponseWriter, r *http.Request) {
	var req TabRemovedRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.supervisor.TabRemoved(r.Context(), req.TabID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TabResponse{Tracking: false})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.supervisor.Snapshot(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
