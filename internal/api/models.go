package api

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Message is a command sent by the add-on popup or background script
type Message struct {
	Type  string `json:"type"`
	Value *bool  `json:"value,omitempty"`
	Site  string `json:"site,omitempty"`
}

// TabActivatedRequest reports the tab the user switched to
type TabActivatedRequest struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
}

// TabRemovedRequest reports a closed tab
type TabRemovedRequest struct {
	TabID int `json:"tabId"`
}

// FocusModeResponse answers getFocusMode and toggleFocusMode
type FocusModeResponse struct {
	FocusMode bool `json:"focusMode"`
}

// AddBlockedSiteResponse answers addBlockedSite
type AddBlockedSiteResponse struct {
	Site  string `json:"site"`
	Added bool   `json:"added"`
}

// StatusResponse answers commands without a result
type StatusResponse struct {
	Status string `json:"status"`
}

// TabResponse answers tab events
type TabResponse struct {
	Tracking bool   `json:"tracking"`
	Reason   string `json:"reason,omitempty"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}
