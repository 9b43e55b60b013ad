package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/quantrail/barfetch/internal/config"
	"github.com/quantrail/barfetch/internal/job"
	"github.com/quantrail/barfetch/internal/logger"
	"github.com/quantrail/barfetch/internal/preview"
	"github.com/quantrail/barfetch/internal/types"
	"github.com/quantrail/barfetch/pkg/errors"
	"github.com/quantrail/barfetch/pkg/marketdata"
	"github.com/quantrail/barfetch/pkg/marketdata/provider"
)

type fakeProvider struct {
	bars       []types.Bar
	failSymbol string
}

func (p *fakeProvider) Name() string { return "binance" }

func (p *fakeProvider) Resolve(_ context.Context, symbol string) (types.Instrument, error) {
	if symbol == p.failSymbol {
		return types.Instrument{}, errors.NewInstrumentNotFoundError(symbol, "")
	}

	return types.Instrument{Symbol: symbol}, nil
}

func (p *fakeProvider) DailyBars(_ context.Context, instrument types.Instrument, _, _ time.Time) ([]types.Bar, error) {
	bars := make([]types.Bar, len(p.bars))
	for i, bar := range p.bars {
		bar.Symbol = instrument.Symbol
		bars[i] = bar
	}

	return bars, nil
}

// fakeSessionProvider also implements provider.SessionProvider.
type fakeSessionProvider struct {
	fakeProvider

	mu            sync.Mutex
	authenticated bool
}

func (p *fakeSessionProvider) Name() string { return "kite" }

func (p *fakeSessionProvider) LoginURL() string { return "https://broker.test/login" }

func (p *fakeSessionProvider) CompleteLogin(_ context.Context, requestToken string) error {
	if requestToken == "bad" {
		return errors.New(errors.ErrCodeLoginFailed, "token rejected")
	}

	p.mu.Lock()
	p.authenticated = true
	p.mu.Unlock()

	return nil
}

func (p *fakeSessionProvider) Authenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.authenticated
}

type ServerTestSuite struct {
	suite.Suite
	dataDir string
	ts      *httptest.Server
	server  *Server
}

func (s *ServerTestSuite) SetupTest() {
	s.startServer(&fakeProvider{bars: []types.Bar{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 100, High: 110, Low: 95, Close: 105, Volume: 1000},
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 105, High: 112, Low: 101, Close: 108, Volume: 1200},
	}})
}

func (s *ServerTestSuite) TearDownTest() {
	if s.ts != nil {
		s.ts.Close()
	}
}

func (s *ServerTestSuite) startServer(p provider.Provider) {
	if s.ts != nil {
		s.ts.Close()
	}

	s.dataDir = s.T().TempDir()

	client, err := marketdata.NewClientWithProvider(marketdata.ClientConfig{
		ProviderType: provider.ProviderBinance,
		WriterType:   marketdata.WriterCSV,
		DataPath:     s.dataDir,
	}, p)
	s.Require().NoError(err)

	log, err := logger.NewLogger()
	s.Require().NoError(err)

	cfg := config.Default()
	cfg.DataDir = s.dataDir

	s.server = NewServerWithClient(&cfg, log, client)
	s.ts = httptest.NewServer(s.server.Router())
}

func (s *ServerTestSuite) uploadJob(csv, start, end string) *http.Response {
	var body bytes.Buffer

	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("symbols", "symbols.csv")
	s.Require().NoError(err)

	_, err = part.Write([]byte(csv))
	s.Require().NoError(err)

	s.Require().NoError(form.WriteField("start", start))
	s.Require().NoError(form.WriteField("end", end))
	s.Require().NoError(form.Close())

	resp, err := http.Post(s.ts.URL+"/api/jobs", form.FormDataContentType(), &body)
	s.Require().NoError(err)

	return resp
}

func (s *ServerTestSuite) decodeJob(resp *http.Response) job.Snapshot {
	defer resp.Body.Close()

	var snapshot job.Snapshot
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&snapshot))

	return snapshot
}

func (s *ServerTestSuite) waitForJob(id string) job.Snapshot {
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := http.Get(s.ts.URL + "/api/jobs/" + id)
		s.Require().NoError(err)

		snapshot := s.decodeJob(resp)
		if snapshot.Done() {
			return snapshot
		}

		time.Sleep(10 * time.Millisecond)
	}

	s.FailNow("job did not finish in time")

	return job.Snapshot{}
}

func (s *ServerTestSuite) TestIndexServed() {
	resp, err := http.Get(s.ts.URL + "/")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Type"), "text/html")
}

func (s *ServerTestSuite) TestSessionWithoutLoginFlow() {
	resp, err := http.Get(s.ts.URL + "/api/session")
	s.Require().NoError(err)
	defer resp.Body.Close()

	var session sessionResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&session))

	s.Equal("binance", session.Provider)
	s.False(session.RequiresLogin)
	s.True(session.Authenticated)
	s.Empty(session.LoginURL)
}

func (s *ServerTestSuite) TestLoginFlow() {
	s.startServer(&fakeSessionProvider{})

	resp, err := http.Get(s.ts.URL + "/api/session")
	s.Require().NoError(err)

	var session sessionResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&session))
	resp.Body.Close()

	s.True(session.RequiresLogin)
	s.False(session.Authenticated)
	s.Equal("https://broker.test/login", session.LoginURL)

	// Uploads are rejected until the session is established.
	resp = s.uploadJob("symbol\nTCS\n", "2024-01-01", "2024-01-31")
	resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Completing the callback authenticates the provider.
	httpClient := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	resp, err = httpClient.Get(s.ts.URL + "/callback?request_token=ok")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	resp = s.uploadJob("symbol\nTCS\n", "2024-01-01", "2024-01-31")
	s.Equal(http.StatusAccepted, resp.StatusCode)
	snapshot := s.decodeJob(resp)
	s.waitForJob(snapshot.ID)
}

func (s *ServerTestSuite) TestCallbackRejectsBadToken() {
	s.startServer(&fakeSessionProvider{})

	resp, err := http.Get(s.ts.URL + "/callback?request_token=bad")
	s.Require().NoError(err)
	resp.Body.Close()

	s.Equal(http.StatusBadGateway, resp.StatusCode)
}

func (s *ServerTestSuite) TestProviders() {
	resp, err := http.Get(s.ts.URL + "/api/providers")
	s.Require().NoError(err)
	defer resp.Body.Close()

	var infos []marketdata.ProviderInfo
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&infos))

	s.Len(infos, 3)
}

func (s *ServerTestSuite) TestProviderSchema() {
	resp, err := http.Get(s.ts.URL + "/api/providers/kite/schema")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var schema map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&schema))
	s.Contains(schema, "properties")

	resp, err = http.Get(s.ts.URL + "/api/providers/nope/schema")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *ServerTestSuite) TestCreateJobFetchesAndDownloads() {
	resp := s.uploadJob("symbol\nTCS\nINFY\n", "2024-01-01", "2024-01-31")
	s.Equal(http.StatusAccepted, resp.StatusCode)

	created := s.decodeJob(resp)
	s.Equal(2, created.Symbols)

	finished := s.waitForJob(created.ID)
	s.Equal(job.StatusCompleted, finished.Status)
	s.Equal(int64(4), finished.Bars)
	s.Equal(int64(0), finished.ErrorRows)
	s.NotEmpty(finished.OutputPath)

	// Preview reflects the written file.
	resp, err := http.Get(fmt.Sprintf("%s/api/jobs/%s/preview?limit=10", s.ts.URL, created.ID))
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var result preview.Result
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&result))
	s.Equal(int64(4), result.Stats.Rows)
	s.Len(result.Rows, 4)

	// Download serves the CSV as an attachment.
	resp, err = http.Get(fmt.Sprintf("%s/api/jobs/%s/download", s.ts.URL, created.ID))
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Disposition"), "attachment")
}

func (s *ServerTestSuite) TestCreateJobInvalidDates() {
	resp := s.uploadJob("symbol\nTCS\n", "2024-02-01", "2024-01-01")
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *ServerTestSuite) TestCreateJobMissingSymbolColumn() {
	resp := s.uploadJob("ticker\nTCS\n", "2024-01-01", "2024-01-31")
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *ServerTestSuite) postJSONJob(body string) *http.Response {
	resp, err := http.Post(s.ts.URL+"/api/jobs", "application/json", strings.NewReader(body))
	s.Require().NoError(err)

	return resp
}

func (s *ServerTestSuite) TestCreateJobFromJSONBody() {
	resp := s.postJSONJob(`{"symbols": ["TCS", "INFY"], "startDate": "2024-01-01", "endDate": "2024-01-31"}`)
	s.Equal(http.StatusAccepted, resp.StatusCode)

	created := s.decodeJob(resp)
	s.Equal(2, created.Symbols)

	finished := s.waitForJob(created.ID)
	s.Equal(job.StatusCompleted, finished.Status)
	s.Equal(int64(4), finished.Bars)
}

func (s *ServerTestSuite) TestCreateJobFromJSONBodyInvalid() {
	resp := s.postJSONJob(`{"symbols": [], "startDate": "2024-01-01", "endDate": "2024-01-31"}`)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.postJSONJob(`{"symbols": ["TCS"], "startDate": "2024-02-01", "endDate": "2024-01-01"}`)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *ServerTestSuite) TestGetJobNotFound() {
	resp, err := http.Get(s.ts.URL + "/api/jobs/missing")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *ServerTestSuite) TestJobWebSocketStreamsUntilDone() {
	resp := s.uploadJob("symbol\nTCS\n", "2024-01-01", "2024-01-31")
	created := s.decodeJob(resp)

	wsURL := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/api/jobs/" + created.ID + "/ws"

	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err)
	if wsResp != nil {
		wsResp.Body.Close()
	}
	defer conn.Close()

	var last job.Snapshot

	for {
		var snapshot job.Snapshot
		if err := conn.ReadJSON(&snapshot); err != nil {
			break
		}

		last = snapshot
		if snapshot.Done() {
			break
		}
	}

	s.Equal(job.StatusCompleted, last.Status)
	s.Equal(int64(2), last.Bars)
}

func (s *ServerTestSuite) TestErrorRowsReported() {
	s.startServer(&fakeProvider{
		bars: []types.Bar{
			{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		},
		failSymbol: "BOGUS",
	})

	resp := s.uploadJob("symbol\nTCS\nBOGUS\n", "2024-01-01", "2024-01-31")
	created := s.decodeJob(resp)

	finished := s.waitForJob(created.ID)
	s.Equal(job.StatusCompleted, finished.Status)
	s.Equal(int64(1), finished.Bars)
	s.Equal(int64(1), finished.ErrorRows)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
