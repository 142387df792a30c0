package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"ZKPong/internal/pong"
	"ZKPong/internal/report"
	"ZKPong/internal/session"
)

// sessionSummary 是列表接口返回的精简视图，不含转录。
type sessionSummary struct {
	ID        string               `json:"id"`
	Status    session.Status       `json:"status"`
	Source    session.Source       `json:"source"`
	MaxTicks  int                  `json:"max_ticks"`
	Entries   int                  `json:"entries"`
	Outcome   pong.Outcome         `json:"outcome"`
	Result    *session.ProofResult `json:"result,omitempty"`
	ErrorCode string               `json:"error_code,omitempty"`
	LastError string               `json:"last_error,omitempty"`
	Attempts  int                  `json:"attempts"`
	CreatedAt int64                `json:"created_at"`
	UpdatedAt int64                `json:"updated_at"`
}

func summarize(s *session.Session) sessionSummary {
	return sessionSummary{
		ID:        s.ID,
		Status:    s.Status,
		Source:    s.Source,
		MaxTicks:  s.MaxTicks,
		Entries:   len(s.Transcript),
		Outcome:   s.Outcome,
		Result:    s.Result,
		ErrorCode: s.ErrorCode,
		LastError: s.LastError,
		Attempts:  s.Attempts,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (s *Server) ready(w http.ResponseWriter) bool {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "INITIALIZATION_FAILURE", "会话服务未初始化")
		return false
	}
	return true
}

// decode 解析 JSON 请求体。allowEmpty 为 true 时空请求体视为零值。
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "INVALID_ARGUMENT", "请求体过大")
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "请求体解析失败: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	var req session.SimulateRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	created, err := s.sessions.Simulate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, created)
}

func (s *Server) handleSubmitTranscript(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	var req session.SubmitRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	created, err := s.sessions.SubmitTranscript(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, created)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	found, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleProofInput(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	input, err := s.sessions.BuildInput(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, input)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	id := r.PathValue("id")
	found, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.Render(w, found.Transcript, report.WithTitle("ZKPong session "+id)); err != nil {
		writeError(w, http.StatusInternalServerError, "UNKNOWN", err.Error())
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	opts, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	sessions, err := s.sessions.List(r.Context(), opts...)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	items := make([]sessionSummary, 0, len(sessions))
	for _, item := range sessions {
		items = append(items, summarize(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": items})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	opts, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	stats, err := s.sessions.Stats(r.Context(), opts...)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseListQuery(r *http.Request) ([]session.ListOption, error) {
	q := r.URL.Query()
	var opts []session.ListOption

	if raw := q.Get("status"); raw != "" {
		var statuses []session.Status
		for _, part := range strings.Split(raw, ",") {
			status := session.Status(strings.ToLower(strings.TrimSpace(part)))
			if status == "" {
				continue
			}
			if !session.IsValidStatus(status) {
				return nil, fmt.Errorf("未知的会话状态: %s", part)
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, session.WithStatuses(statuses...))
	}
	if raw := q.Get("outcome"); raw != "" {
		outcome := pong.Outcome(strings.ToLower(raw))
		switch outcome {
		case pong.OutcomeLeft, pong.OutcomeRight, pong.OutcomeTie, pong.OutcomeUndecided:
		default:
			return nil, fmt.Errorf("未知的对局结果: %s", raw)
		}
		opts = append(opts, session.WithOutcome(outcome))
	}
	for _, field := range []struct {
		name  string
		apply func(int) session.ListOption
	}{
		{"limit", session.WithLimit},
		{"offset", session.WithOffset},
	} {
		raw := q.Get(field.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s 必须是非负整数", field.name)
		}
		opts = append(opts, field.apply(n))
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		opts = append(opts, session.WithSortOrder(session.SortByUpdatedAsc))
	default:
		return nil, fmt.Errorf("order 只支持 asc 或 desc")
	}
	if raw := q.Get("has_result"); raw != "" {
		has, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("has_result 必须是布尔值")
		}
		opts = append(opts, session.WithResultPresence(has))
	}
	return opts, nil
}
