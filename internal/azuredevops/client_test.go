package azuredevops

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workItemFixture = `{
  "id": 4711,
  "url": "https://dev.azure.com/acme/platform/_apis/wit/workItems/4711",
  "fields": {
    "System.Title": "Fix null reference in invoice export",
    "System.WorkItemType": "Bug",
    "System.State": "Active",
    "System.Description": "<div>Crashes when the customer list is empty.</div>",
    "System.Tags": "billing; hotfix",
    "System.AssignedTo": {"displayName": "Jo Doe", "uniqueName": "jo@acme.test"},
    "Microsoft.VSTS.Common.Priority": 2
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		OrgURL:              srv.URL,
		Project:             "platform",
		Repository:          "services",
		PersonalAccessToken: "secret-pat",
	}, ClientOptions{})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestNewClient_RequiresConfiguration(t *testing.T) {
	_, err := NewClient(Config{OrgURL: "https://dev.azure.com/acme"}, ClientOptions{})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestFetchWorkItem(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/platform/_apis/wit/workitems/4711", r.URL.Path)
		assert.Equal(t, "7.0", r.URL.Query().Get("api-version"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Empty(t, user)
		assert.Equal(t, "secret-pat", pass)

		writeJSON(w, http.StatusOK, workItemFixture)
	})

	item, err := client.FetchWorkItem(context.Background(), 4711)
	require.NoError(t, err)

	assert.Equal(t, 4711, item.ID)
	assert.Equal(t, "Fix null reference in invoice export", item.Title)
	assert.Equal(t, "Bug", item.Type)
	assert.Equal(t, "Active", item.State)
	assert.Contains(t, item.Description, "customer list")
	assert.Equal(t, []string{"billing", "hotfix"}, item.Tags)
	assert.Equal(t, "Jo Doe", item.AssignedTo)
	assert.Equal(t, 2, item.Priority)
	assert.NotEmpty(t, item.URL)
}

func TestFetchWorkItem_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message": "TF401232: Work item 99999 does not exist."}`)
	})

	_, err := client.FetchWorkItem(context.Background(), 99999)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "99999")
}

func TestFetchWorkItem_RejectedTokenSignInPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		io.WriteString(w, "<html><body>Sign in to your account</body></html>")
	})

	_, err := client.FetchWorkItem(context.Background(), 4711)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "personal access token")
}

func TestFetchWorkItem_APIErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"message": "The requested fields are invalid."}`)
	})

	_, err := client.FetchWorkItem(context.Background(), 4711)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "The requested fields are invalid.", apiErr.Message)
}

func TestFetchWorkItem_InvalidID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request must be sent for a non-positive id")
	})

	_, err := client.FetchWorkItem(context.Background(), 0)
	require.Error(t, err)
}

func TestCreatePullRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/platform/_apis/git/repositories/web-frontend/pullrequests", r.URL.Path)
		assert.Equal(t, "7.0", r.URL.Query().Get("api-version"))

		var body struct {
			SourceRefName string `json:"sourceRefName"`
			TargetRefName string `json:"targetRefName"`
			Title         string `json:"title"`
			Description   string `json:"description"`
			WorkItemRefs  []struct {
				ID string `json:"id"`
			} `json:"workItemRefs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refs/heads/workbeat/fix-invoice-a1b2c3d4", body.SourceRefName)
		assert.Equal(t, "refs/heads/main", body.TargetRefName)
		assert.Equal(t, "Fix invoice export", body.Title)
		require.Len(t, body.WorkItemRefs, 1)
		assert.Equal(t, "4711", body.WorkItemRefs[0].ID)

		writeJSON(w, http.StatusCreated, `{
  "pullRequestId": 88,
  "status": "active",
  "title": "Fix invoice export",
  "sourceRefName": "refs/heads/workbeat/fix-invoice-a1b2c3d4",
  "targetRefName": "refs/heads/main",
  "url": "https://dev.azure.com/acme/platform/_apis/git/repositories/web-frontend/pullRequests/88"
}`)
	})

	pr, err := client.CreatePullRequest(context.Background(), NewPullRequest{
		Title:        "Fix invoice export",
		Description:  "Handles the empty customer list.",
		SourceBranch: "workbeat/fix-invoice-a1b2c3d4",
		TargetBranch: "main",
		WorkItemID:   4711,
	}, "web-frontend")
	require.NoError(t, err)

	assert.Equal(t, 88, pr.ID)
	assert.Equal(t, "active", pr.Status)
	assert.Equal(t, "refs/heads/main", pr.TargetBranch)
	assert.NotEmpty(t, pr.URL)
}

func TestCreatePullRequest_UsesConfiguredRepository(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/platform/_apis/git/repositories/services/pullrequests", r.URL.Path)
		writeJSON(w, http.StatusCreated, `{"pullRequestId": 1, "status": "active"}`)
	})

	_, err := client.CreatePullRequest(context.Background(), NewPullRequest{
		Title:        "Chore",
		SourceBranch: "chore/deps",
		TargetBranch: "main",
	}, "")
	require.NoError(t, err)
}

func TestCreatePullRequest_KeepsQualifiedRefs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refs/heads/feature/x", body["sourceRefName"])
		writeJSON(w, http.StatusCreated, `{"pullRequestId": 2, "status": "active"}`)
	})

	_, err := client.CreatePullRequest(context.Background(), NewPullRequest{
		Title:        "Feature",
		SourceBranch: "refs/heads/feature/x",
		TargetBranch: "main",
	}, "")
	require.NoError(t, err)
}

func TestCreatePullRequest_Validation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request must be sent for invalid input")
	})

	tests := []struct {
		name string
		pr   NewPullRequest
	}{
		{"missing title", NewPullRequest{SourceBranch: "a", TargetBranch: "b"}},
		{"missing source", NewPullRequest{Title: "t", TargetBranch: "b"}},
		{"missing target", NewPullRequest{Title: "t", SourceBranch: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreatePullRequest(context.Background(), tt.pr, "")
			require.Error(t, err)
		})
	}
}

func TestSplitTags(t *testing.T) {
	assert.Nil(t, splitTags(""))
	assert.Nil(t, splitTags("   "))
	assert.Equal(t, []string{"one"}, splitTags("one"))
	assert.Equal(t, []string{"one", "two"}, splitTags("one; two"))
	assert.Equal(t, []string{"one", "two"}, splitTags("one;two;"))
}
