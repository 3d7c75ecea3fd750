package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/ringbreaker-engine/internal/analysis"
	"github.com/rawblock/ringbreaker-engine/internal/detect"
)

const cycleLedger = `transaction_id,sender_id,receiver_id,amount,timestamp
TX_00001,FRAUD_A,FRAUD_B,5000,2026-01-05 09:00:00
TX_00002,FRAUD_B,FRAUD_C,4900,2026-01-05 10:00:00
TX_00003,FRAUD_C,FRAUD_A,4800,2026-01-05 11:00:00
TX_00004,ACC_X,FRAUD_A,120,2026-01-05 12:00:00
`

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return SetupRouter(Deps{
		Store:    analysis.NewStore(),
		Pipeline: detect.NewPipeline(detect.DefaultConfig(), nil),
	})
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func doUpload(t *testing.T, router *gin.Engine, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartCSV(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUpload_RunsAnalysis(t *testing.T) {
	router := newTestRouter(t)

	w := doUpload(t, router, "ledger.csv", cycleLedger)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Analysis struct {
			SuspiciousAccounts []struct {
				AccountID string  `json:"account_id"`
				RingID    string  `json:"ring_id"`
				Score     float64 `json:"suspicion_score"`
			} `json:"suspicious_accounts"`
			FraudRings []struct {
				RingID      string `json:"ring_id"`
				PatternType string `json:"pattern_type"`
			} `json:"fraud_rings"`
		} `json:"analysis"`
		ReportHash string `json:"report_hash"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.Analysis.FraudRings, 1)
	assert.Equal(t, "RING_001", resp.Analysis.FraudRings[0].RingID)
	assert.NotEmpty(t, resp.ReportHash)

	flagged := map[string]bool{}
	for _, acc := range resp.Analysis.SuspiciousAccounts {
		flagged[acc.AccountID] = true
	}
	assert.True(t, flagged["FRAUD_A"] && flagged["FRAUD_B"] && flagged["FRAUD_C"],
		"loop members must be flagged: %v", flagged)
	assert.False(t, flagged["ACC_X"])
}

func TestUpload_RejectsNonCSVFilename(t *testing.T) {
	router := newTestRouter(t)
	w := doUpload(t, router, "ledger.xlsx", cycleLedger)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_RejectsBadContent(t *testing.T) {
	router := newTestRouter(t)
	w := doUpload(t, router, "ledger.csv", "transaction_id,sender_id\nTX_1,A\n")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation")
}

func TestReadEndpoints_Empty(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{
		"/api/rings",
		"/api/rings/RING_001",
		"/api/accounts/FRAUD_A",
		"/api/graph/cytoscape",
	} {
		w := doGet(router, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestReadEndpoints_AfterUpload(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusOK, doUpload(t, router, "ledger.csv", cycleLedger).Code)

	w := doGet(router, "/api/rings")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "RING_001")

	w = doGet(router, "/api/rings/RING_001")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cycle")

	w = doGet(router, "/api/rings/RING_999")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doGet(router, "/api/accounts/FRAUD_A")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cycle_length_3")

	w = doGet(router, "/api/accounts/ACC_NOBODY")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCytoscape_AfterUpload(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusOK, doUpload(t, router, "ledger.csv", cycleLedger).Code)

	w := doGet(router, "/api/graph/cytoscape")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Nodes []struct {
			Data struct {
				ID      string `json:"id"`
				Flagged bool   `json:"flagged"`
			} `json:"data"`
		} `json:"nodes"`
		Edges []struct {
			Data struct {
				Source string `json:"source"`
				Target string `json:"target"`
			} `json:"data"`
		} `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Nodes, 4)
	assert.Len(t, resp.Edges, 4)
}

func TestHashReport_StableAcrossCalls(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusOK, doUpload(t, router, "ledger.csv", cycleLedger).Code)

	post := func() string {
		req := httptest.NewRequest(http.MethodPost, "/api/hash-report", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			ReportHash string `json:"report_hash"`
			Algorithm  string `json:"algorithm"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "sha256", resp.Algorithm)
		return resp.ReportHash
	}

	assert.Equal(t, post(), post())
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "operational")
	assert.Contains(t, w.Body.String(), `"analysis_loaded":false`)

	require.Equal(t, http.StatusOK, doUpload(t, router, "ledger.csv", cycleLedger).Code)
	w = doGet(router, "/health")
	assert.Contains(t, w.Body.String(), `"analysis_loaded":true`)
}
