package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n8n-mcp/pkg/models"
)

// fakeN8n is a minimal in-memory n8n public API.
type fakeN8n struct {
	mu        sync.Mutex
	workflows []map[string]any
	nextID    int
	hits      atomic.Int32
	lastQuery string
	lastBody  map[string]any
}

func (f *fakeN8n) find(id string) int {
	for i, wf := range f.workflows {
		if wf["id"] == id {
			return i
		}
	}
	return -1
}

func (f *fakeN8n) query() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery
}

func (f *fakeN8n) body() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func (f *fakeN8n) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastQuery = r.URL.RawQuery
	f.lastBody = nil
	if body, _ := io.ReadAll(r.Body); len(body) > 0 {
		json.Unmarshal(body, &f.lastBody)
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	notFound := func() {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	}
	reply := func(v any) { json.NewEncoder(w).Encode(v) }

	switch {
	case path == "/workflows" && r.Method == http.MethodGet:
		reply(map[string]any{"data": f.workflows, "nextCursor": nil})
	case path == "/workflows" && r.Method == http.MethodPost:
		f.nextID++
		wf := f.lastBody
		wf["id"] = fmt.Sprintf("w%d", f.nextID)
		f.workflows = append(f.workflows, wf)
		reply(wf)
	case path == "/executions" && r.Method == http.MethodPost:
		reply(map[string]any{"id": "exec-1", "workflowId": f.lastBody["workflowData"].(map[string]any)["id"]})
	case len(parts) >= 2 && parts[0] == "workflows":
		i := f.find(parts[1])
		if i < 0 {
			notFound()
			return
		}
		switch {
		case len(parts) == 3 && parts[2] == "activate":
			f.workflows[i]["active"] = true
			reply(f.workflows[i])
		case len(parts) == 3 && parts[2] == "deactivate":
			f.workflows[i]["active"] = false
			reply(f.workflows[i])
		case r.Method == http.MethodGet:
			reply(f.workflows[i])
		case r.Method == http.MethodPut:
			wf := f.lastBody
			wf["id"] = parts[1]
			f.workflows[i] = wf
			reply(wf)
		case r.Method == http.MethodDelete:
			wf := f.workflows[i]
			f.workflows = append(f.workflows[:i], f.workflows[i+1:]...)
			reply(wf)
		}
	default:
		notFound()
	}
}

func newTestService(t *testing.T, seed ...map[string]any) (*WorkflowService, *fakeN8n) {
	t.Helper()
	fake := &fakeN8n{workflows: seed}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewWorkflowService(newTestClient(t, srv.URL)), fake
}

func sampleWorkflows() []map[string]any {
	return []map[string]any{
		{"id": "1", "name": "Alpha", "active": true, "nodes": []any{map[string]any{"name": "Start"}}},
		{"id": "2", "name": "beta", "active": false, "tags": []any{map[string]any{"id": "t1", "name": "billing"}}},
		{"id": "3", "name": "gamma-Alpha", "active": false},
	}
}

func names(wfs []*models.Workflow) []string {
	out := make([]string, 0, len(wfs))
	for _, wf := range wfs {
		out = append(out, wf.Name)
	}
	return out
}

func TestWorkflowService_CreateSendsOnlySetFields(t *testing.T) {
	svc, fake := newTestService(t)

	created, err := svc.CreateWorkflow(context.Background(), &models.Workflow{
		Name:  "New",
		Nodes: json.RawMessage(`[]`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "New", created.Name)

	assert.Equal(t, map[string]any{"name": "New", "nodes": []any{}}, map[string]any{
		"name":  fake.body()["name"],
		"nodes": fake.body()["nodes"],
	})
	assert.NotContains(t, fake.body(), "active")
	assert.NotContains(t, fake.body(), "settings")
}

func TestWorkflowService_CreateRequiresName(t *testing.T) {
	svc, fake := newTestService(t)

	_, err := svc.CreateWorkflow(context.Background(), &models.Workflow{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, int32(0), fake.hits.Load())
}

func TestWorkflowService_GetMissingIsNil(t *testing.T) {
	svc, _ := newTestService(t, sampleWorkflows()...)

	wf, err := svc.GetWorkflow(context.Background(), "999", true)
	require.NoError(t, err)
	assert.Nil(t, wf)

	wf, err = svc.GetWorkflow(context.Background(), "1", true)
	require.NoError(t, err)
	require.NotNil(t, wf)
	assert.Equal(t, "Alpha", wf.Name)
	assert.Equal(t, 1, wf.NodeCount())
}

func TestWorkflowService_UpdateMissingIsError(t *testing.T) {
	svc, _ := newTestService(t, sampleWorkflows()...)

	_, err := svc.UpdateWorkflow(context.Background(), "999", &models.Workflow{Name: "x"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	updated, err := svc.UpdateWorkflow(context.Background(), "2", &models.Workflow{Name: "beta v2"})
	require.NoError(t, err)
	assert.Equal(t, "beta v2", updated.Name)
}

func TestWorkflowService_LifecycleMissingIsFalse(t *testing.T) {
	svc, _ := newTestService(t, sampleWorkflows()...)
	ctx := context.Background()

	for name, op := range map[string]func(context.Context, string) (bool, error){
		"delete":     svc.DeleteWorkflow,
		"activate":   svc.ActivateWorkflow,
		"deactivate": svc.DeactivateWorkflow,
	} {
		t.Run(name, func(t *testing.T) {
			ok, err := op(ctx, "999")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	ok, err := svc.ActivateWorkflow(ctx, "2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.DeleteWorkflow(ctx, "3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWorkflowService_MutationInvalidatesReads(t *testing.T) {
	svc, _ := newTestService(t, sampleWorkflows()...)
	ctx := context.Background()

	wf, err := svc.GetWorkflow(ctx, "2", true)
	require.NoError(t, err)
	assert.False(t, wf.IsActive())

	_, err = svc.ActivateWorkflow(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, 0, svc.cache.Len())

	wf, err = svc.GetWorkflow(ctx, "2", true)
	require.NoError(t, err)
	assert.True(t, wf.IsActive())
}

func TestWorkflowService_ListQuery(t *testing.T) {
	svc, fake := newTestService(t, sampleWorkflows()...)

	wfs, err := svc.ListWorkflows(context.Background(), ListOptions{
		Active: models.Bool(true),
		Tags:   []string{"billing", "ops"},
	})
	require.NoError(t, err)
	assert.Len(t, wfs, 3)
	assert.Equal(t, "active=true&limit=20&tags=billing%2Cops", fake.query())
}

func TestWorkflowService_ListEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	wfs, err := svc.ListWorkflows(context.Background(), ListOptions{Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, wfs)
	assert.Empty(t, wfs)
}

func TestWorkflowService_SearchPreservesOrder(t *testing.T) {
	svc, fake := newTestService(t, sampleWorkflows()...)

	found, err := svc.SearchWorkflows(context.Background(), "alpha", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "gamma-Alpha"}, names(found))
	assert.Equal(t, "limit=100", fake.query())

	found, err = svc.SearchWorkflows(context.Background(), "alpha", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, names(found))

	found, err = svc.SearchWorkflows(context.Background(), "BILL", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names(found))

	// the second and third searches were served from cache
	assert.Equal(t, int32(1), fake.hits.Load())
}

func TestWorkflowService_Execute(t *testing.T) {
	svc, fake := newTestService(t, sampleWorkflows()...)

	result, err := svc.ExecuteWorkflow(context.Background(), "1", map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.Equal(t, "exec-1", result["id"])
	assert.Equal(t, "1", result["workflowId"])
	assert.Equal(t, map[string]any{"x": 1.0}, fake.body()["input"])
}

func TestWorkflowService_HealthCheck(t *testing.T) {
	svc, fake := newTestService(t)
	assert.True(t, svc.HealthCheck(context.Background()))
	assert.Equal(t, "limit=1", fake.query())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	down := NewWorkflowService(newTestClient(t, url, WithMaxRetries(0), WithTimeout(time.Second)))
	assert.False(t, down.HealthCheck(context.Background()))
}
