package server

import (
	"encoding/json"
	"net/http"

	"github.com/copyleftdev/cocogo/internal/errors"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeNotFound       = -32004
)

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      interface{}       `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "session.create":
		var params CreateParams
		if err = decodeParams(request.Params, &params); err == nil {
			result, err = s.createSession(params)
		}
	case "session.evaluate", "session.constraints":
		var params EvaluateParams
		if err = decodeParams(request.Params, &params); err != nil {
			break
		}
		var session *Session
		if session, err = s.session(params.SessionID); err != nil {
			break
		}
		if request.Method == "session.evaluate" {
			result, err = session.evaluate(params.X)
		} else {
			result, err = session.evaluateConstraints(params.X)
		}
	case "session.status":
		var params SessionParams
		if err = decodeParams(request.Params, &params); err != nil {
			break
		}
		var session *Session
		if session, err = s.session(params.SessionID); err == nil {
			result, err = session.status()
		}
	case "session.close":
		var params SessionParams
		if err = decodeParams(request.Params, &params); err == nil {
			err = s.closeSession(params.SessionID)
			result = map[string]string{"status": "closed"}
		}
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		code := codeServerError
		switch errors.KindOf(err) {
		case errors.KindConfiguration:
			code = codeInvalidParams
		case errors.KindNotFound:
			code = codeNotFound
		}
		s.respondWithError(w, code, err.Error(), request.ID)
		return
	}

	// Send successful response
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}
	s.respond(w, http.StatusOK, response)
}

// decodeParams decodes the first positional parameter into v.
func decodeParams(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return errors.Configuration("missing required parameters")
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return errors.Configuration("invalid parameter format: %v", err)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}
	s.respond(w, http.StatusOK, response)
}
