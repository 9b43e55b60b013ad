package web

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantrail/barfetch/internal/preview"
	"github.com/quantrail/barfetch/internal/symbols"
	"github.com/quantrail/barfetch/pkg/errors"
	"github.com/quantrail/barfetch/pkg/marketdata"
	"github.com/quantrail/barfetch/pkg/marketdata/provider"
)

const dateLayout = "2006-01-02"

// maxUploadBytes bounds symbol CSV uploads.
const maxUploadBytes = 10 << 20

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// sessionResponse describes the provider's authentication state.
type sessionResponse struct {
	Provider      string `json:"provider"`
	RequiresLogin bool   `json:"requiresLogin"`
	Authenticated bool   `json:"authenticated"`
	LoginURL      string `json:"loginUrl,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	response := sessionResponse{
		Provider:      s.client.Provider().Name(),
		Authenticated: true,
	}

	if session, ok := s.client.Provider().(provider.SessionProvider); ok {
		response.RequiresLogin = true
		response.Authenticated = session.Authenticated()

		if !response.Authenticated {
			response.LoginURL = session.LoginURL()
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleCallback completes the brokerage login redirect. The provider
// redirects the browser here with a request_token query parameter.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	session, ok := s.client.Provider().(provider.SessionProvider)
	if !ok {
		s.writeError(w, errors.Newf(errors.ErrCodeInvalidProvider, "provider %s has no login flow", s.client.Provider().Name()))

		return
	}

	requestToken := r.URL.Query().Get("request_token")
	if requestToken == "" {
		s.writeError(w, errors.New(errors.ErrCodeLoginFailed, "missing request_token parameter"))

		return
	}

	if err := session.CompleteLogin(r.Context(), requestToken); err != nil {
		s.writeError(w, err)

		return
	}

	s.logger.Info("session established", zap.String("provider", s.client.Provider().Name()))

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	names := marketdata.GetSupportedProviders()

	infos := make([]marketdata.ProviderInfo, 0, len(names))
	for _, name := range names {
		info, err := marketdata.GetProviderInfo(name)
		if err != nil {
			continue
		}

		infos = append(infos, info)
	}

	s.writeJSON(w, http.StatusOK, infos)
}

// handleProviderSchema returns the JSON schema for a provider's fetch
// configuration, used by API clients to build request forms.
func (s *Server) handleProviderSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := marketdata.GetFetchConfigSchema(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(schema))
}

// handleCreateJob launches a background fetch. It accepts either a
// multipart form with a "symbols" CSV file and "start"/"end" date
// fields, or an application/json body matching the provider's fetch
// config schema.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if session, ok := s.client.Provider().(provider.SessionProvider); ok && !session.Authenticated() {
		s.writeError(w, errors.New(errors.ErrCodeSessionRequired, "log in before starting a fetch"))

		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		s.createJobFromJSON(w, r)

		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to parse upload", err))

		return
	}

	file, _, err := r.FormFile("symbols")
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidSymbolList, "missing symbols file", err))

		return
	}
	defer file.Close()

	symbolList, err := symbols.ParseCSV(file)
	if err != nil {
		s.writeError(w, err)

		return
	}

	startDate, endDate, err := parseDateRange(r.FormValue("start"), r.FormValue("end"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	j := s.manager.Start(s.client, marketdata.FetchParams{
		Symbols:   symbolList,
		StartDate: startDate,
		EndDate:   endDate,
	})

	s.writeJSON(w, http.StatusAccepted, j.Snapshot())
}

// createJobFromJSON starts a fetch from a JSON body shaped like the
// provider's fetch config schema (GET /api/providers/{name}/schema).
func (s *Server) createJobFromJSON(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to read request body", err))

		return
	}

	config, err := marketdata.ParseFetchConfig(s.client.Provider().Name(), string(body))
	if err != nil {
		s.writeError(w, err)

		return
	}

	params, err := config.ToFetchParams()
	if err != nil {
		s.writeError(w, err)

		return
	}

	if params.EndDate.Before(params.StartDate) {
		s.writeError(w, errors.Newf(errors.ErrCodeInvalidDateRange, "end date %s is before start date %s",
			params.EndDate.Format(dateLayout), params.StartDate.Format(dateLayout)))

		return
	}

	// Inclusive end date, same as the form path.
	params.EndDate = params.EndDate.Add(24*time.Hour - time.Second)

	j := s.manager.Start(s.client, params)

	s.writeJSON(w, http.StatusAccepted, j.Snapshot())
}

// parseDateRange parses inclusive start/end dates. The end date is
// extended to end of day so a fetch covering a single day is valid.
func parseDateRange(start, end string) (time.Time, time.Time, error) {
	startDate, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(errors.ErrCodeInvalidDateRange, err, "invalid start date: %q", start)
	}

	endDate, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(errors.ErrCodeInvalidDateRange, err, "invalid end date: %q", end)
	}

	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, errors.Newf(errors.ErrCodeInvalidDateRange, "end date %s is before start date %s", end, start)
	}

	endDate = endDate.Add(24*time.Hour - time.Second)

	return startDate, endDate, nil
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, j.Snapshot())
}

// handleJobWebSocket streams job snapshots until the job finishes or
// the client disconnects.
func (s *Server) handleJobWebSocket(w http.ResponseWriter, r *http.Request) {
	j, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates, unsubscribe := j.Subscribe()
	defer unsubscribe()

	// Drain client frames so close messages are noticed.
	clientGone := make(chan struct{})

	go func() {
		defer close(clientGone)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))

				return
			}

			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		case <-clientGone:
			return
		}
	}
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.manager.Cancel(id); err != nil {
		s.writeError(w, err)

		return
	}

	j, err := s.manager.Get(id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, j.Snapshot())
}

// finishedOutput returns the output path of a job that has one.
func (s *Server) finishedOutput(r *http.Request) (string, error) {
	j, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		return "", err
	}

	snapshot := j.Snapshot()
	if snapshot.OutputPath == "" {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "job %s has no output yet", snapshot.ID)
	}

	return snapshot.OutputPath, nil
}

func (s *Server) handlePreviewJob(w http.ResponseWriter, r *http.Request) {
	outputPath, err := s.finishedOutput(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = parseLimit(raw)
		if err != nil {
			s.writeError(w, err)

			return
		}
	}

	result, err := preview.File(r.Context(), outputPath, limit)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func parseLimit(raw string) (int, error) {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "invalid limit: %q", raw)
	}

	return limit, nil
}

func (s *Server) handleDownloadJob(w http.ResponseWriter, r *http.Request) {
	outputPath, err := s.finishedOutput(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	filename := filepath.Base(outputPath)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	http.ServeFile(w, r, outputPath)
}
