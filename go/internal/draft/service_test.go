package draft_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(h *harness) *httptest.Server {
	mux := http.NewServeMux()
	draft.NewService(h.engine).Register(mux)
	return httptest.NewServer(mux)
}

func doJSON(t *testing.T, method, url string, body any, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func TestServiceDraftFlow(t *testing.T) {
	h := newHarness(t, 2, 2)
	srv := newServer(h)
	defer srv.Close()

	base := srv.URL + "/leagues/" + h.leagueID.String()

	resp, body := doJSON(t, http.MethodPut, base+"/participants/"+h.participants[0].ID.String()+"/preferences",
		map[string]any{"ranked_team_ids": []uuid.UUID{h.teams[1].ID}, "auto_draft": false}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, h.participants[0].ID.String(), body["participant_id"])

	resp, body = doJSON(t, http.MethodPost, base+"/draft/start", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.LeagueStatusDraft), body["status"])

	wrongSeat := http.Header{draft.UserIDHeader: {h.participants[1].UserID.String()}}
	resp, body = doJSON(t, http.MethodPost, base+"/draft/picks", map[string]any{"team_id": h.teams[0].ID}, wrongSeat)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, draft.ReasonNotYourTurn, body["reason"])

	onClock := http.Header{draft.UserIDHeader: {h.participants[0].UserID.String()}}
	resp, body = doJSON(t, http.MethodPost, base+"/draft/picks", map[string]any{"team_id": h.teams[0].ID}, onClock)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 1, body["pick_number"])

	resp, body = doJSON(t, http.MethodGet, base+"/draft", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["current_seat"])
	assert.Len(t, body["picks"], 1)
	assert.Len(t, body["undrafted_teams"], 3)

	resp, _ = doJSON(t, http.MethodPut, base+"/participants/"+h.participants[1].ID.String()+"/autodraft",
		map[string]any{"enabled": true}, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/draft/reset", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, models.LeagueStatusSetup, h.league().Status)
}

func TestServiceErrors(t *testing.T) {
	h := newHarness(t, 2, 1)
	srv := newServer(h)
	defer srv.Close()

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		header http.Header
		status int
	}{
		{name: "bad league id", method: http.MethodGet, path: "/leagues/nope/draft", status: http.StatusBadRequest},
		{name: "unknown league", method: http.MethodGet, path: "/leagues/" + uuid.NewString() + "/draft", status: http.StatusNotFound},
		{name: "missing user header", method: http.MethodPost, path: "/leagues/" + h.leagueID.String() + "/draft/picks",
			body: map[string]any{"team_id": h.teams[0].ID}, status: http.StatusUnauthorized},
		{name: "draft not active", method: http.MethodPost, path: "/leagues/" + h.leagueID.String() + "/draft/picks",
			body: map[string]any{"team_id": h.teams[0].ID}, header: http.Header{draft.UserIDHeader: {h.participants[0].UserID.String()}},
			status: http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := doJSON(t, tc.method, srv.URL+tc.path, tc.body, tc.header)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
