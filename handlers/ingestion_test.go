package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIngestionLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "ing@example.com", "editor")
	doc := app.upload(t, token, "to ingest", "hello")
	docID := doc["id"].(string)

	w := app.doJSON(t, "POST", "/api/ingestion", map[string]interface{}{
		"documentId":    docID,
		"configuration": map[string]interface{}{"language": "en"},
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var proc struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &proc))
	require.Equal(t, "pending", proc.Status)

	app.eng.Wait()

	w = app.doJSON(t, "GET", "/api/ingestion/"+proc.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var done struct {
		Status string `json:"status"`
		Result *struct {
			ExtractedText string `json:"extractedText"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &done))
	require.Equal(t, "completed", done.Status)
	require.NotNil(t, done.Result)
	require.Contains(t, done.Result.ExtractedText, "Extracted text from file (5 bytes)")

	// the owning document reflects the outcome
	w = app.doJSON(t, "GET", "/api/documents/"+docID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"completed"`)
}

func TestIngestionCreateValidation(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "val@example.com", "editor")

	w := app.doJSON(t, "POST", "/api/ingestion", map[string]interface{}{}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = app.doJSON(t, "POST", "/api/ingestion", map[string]interface{}{"documentId": "missing-doc"}, token)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReingestAfterCompletionAllowed(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "dupling@example.com", "editor")
	doc := app.upload(t, token, "dup", "data")
	docID := doc["id"].(string)

	w := app.doJSON(t, "POST", "/api/ingestion", map[string]interface{}{"documentId": docID}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	app.eng.Wait()

	// only an active process blocks re-ingestion; a completed run does not
	w = app.doJSON(t, "POST", "/api/ingestion", map[string]interface{}{"documentId": docID}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	app.eng.Wait()
}

func TestCancelTerminalOverHTTPConflicts(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "cancel@example.com", "editor")
	doc := app.upload(t, token, "c", "data")
	docID := doc["id"].(string)

	w := app.doJSON(t, "POST", "/api/ingestion", map[string]interface{}{"documentId": docID}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	var proc struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &proc))
	app.eng.Wait()

	w = app.doJSON(t, "POST", "/api/ingestion/"+proc.ID+"/cancel", nil, token)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestIngestionListScoping(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup(t, "ia@example.com", "editor")
	bob := app.signup(t, "ib@example.com", "editor")

	docA := app.upload(t, alice, "a", "aa")
	docB := app.upload(t, bob, "b", "bb")

	w := app.doJSON(t, "POST", "/api/ingestion", map[string]interface{}{"documentId": docA["id"]}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	w = app.doJSON(t, "POST", "/api/ingestion", map[string]interface{}{"documentId": docB["id"]}, bob)
	require.Equal(t, http.StatusCreated, w.Code)
	app.eng.Wait()

	var list struct {
		Data  []map[string]interface{} `json:"data"`
		Total int64                    `json:"total"`
	}
	w = app.doJSON(t, "GET", "/api/ingestion", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.EqualValues(t, 1, list.Total)
	require.Equal(t, docA["id"], list.Data[0]["documentId"])

	// foreign processes are forbidden, unknown ids are not found
	var proc struct {
		ID string `json:"id"`
	}
	b, _ := json.Marshal(list.Data[0])
	require.NoError(t, json.Unmarshal(b, &proc))
	w = app.doJSON(t, "GET", "/api/ingestion/"+proc.ID, nil, bob)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = app.doJSON(t, "GET", "/api/ingestion/unknown-id", nil, bob)
	require.Equal(t, http.StatusNotFound, w.Code)
}
