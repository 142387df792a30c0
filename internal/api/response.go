package api

import (
	"encoding/json"
	"net/http"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/session"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeServiceError 按错误码映射 HTTP 状态。5xx 只返回错误码的通用描述。
func writeServiceError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	status := statusFor(code)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = xerrors.AttributesOf(code).Message
	}
	writeError(w, status, string(code), message)
}

func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument, xerrors.CodeTranscriptInvalid, session.CodeSessionValidation:
		return http.StatusBadRequest
	case xerrors.CodeNotFound, session.CodeSessionNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, session.CodeSessionConflict:
		return http.StatusConflict
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
