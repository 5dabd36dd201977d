package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform serves the list endpoints of the built-in resources.
type fakePlatform struct {
	mu       sync.Mutex
	maxLimit int
	queries  []string
}

func (p *fakePlatform) record(r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, r.URL.Path+"?"+r.URL.RawQuery)
	if l, _ := strconv.Atoi(r.URL.Query().Get("limit")); l > p.maxLimit {
		p.maxLimit = l
	}
}

func (p *fakePlatform) lastFilters() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queries) == 0 {
		return ""
	}
	q := p.queries[len(p.queries)-1]
	_, raw, _ := strings.Cut(q, "?")
	v, _ := url.ParseQuery(raw)
	return v.Get("filters")
}

func servePage(w http.ResponseWriter, r *http.Request, total int, record func(i int) map[string]interface{}) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	data := []map[string]interface{}{}
	for i := offset; i < offset+limit && i < total; i++ {
		data = append(data, record(i))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"_meta": map[string]interface{}{"total": total, "count": len(data), "limit": limit, "offset": offset},
		"data":  data,
	})
}

func newFakePlatform(t *testing.T) (*httptest.Server, *fakePlatform) {
	t.Helper()
	p := &fakePlatform{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v0/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 1, "login": "jane@example.com"})
	})
	mux.HandleFunc("/v0/wallets/default", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"wallet_id": 7, "name": "Main", "available_credits": 12.5})
	})
	mux.HandleFunc("/v0/wallets/-/payments", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		servePage(w, r, 3, func(i int) map[string]interface{} {
			return map[string]interface{}{
				"createdAt":       fmt.Sprintf("2024-03-0%dT10:00:00Z", i+1),
				"walletId":        7,
				"priceDollars":    10 * (i + 1),
				"osparcCredits":   100 * (i + 1),
				"completedStatus": "SUCCESS",
				"comment":         "topup " + strconv.Itoa(i),
			}
		})
	})
	mux.HandleFunc("/v0/services/-/resource-usages", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		if r.URL.Query().Get("wallet_id") != "7" {
			http.Error(w, "unknown wallet", http.StatusNotFound)
			return
		}
		servePage(w, r, 60, func(i int) map[string]interface{} {
			return map[string]interface{}{
				"project_name":       "p" + strconv.Itoa(i),
				"node_name":          "solver",
				"service_key":        "simcore/services/comp/sleeper",
				"started_at":         "2024-01-10T08:00:00Z",
				"stopped_at":         "2024-01-10T09:30:00Z",
				"service_run_status": "SUCCESS",
				"credit_cost":        1.5,
				"user_email":         "jane@example.com",
			}
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, p
}

// runCLI executes the full command tree with fresh flags.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	AddCommands(root)

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func platformArgs(t *testing.T, srv *httptest.Server) []string {
	return []string{
		"--config", filepath.Join(t.TempDir(), "apiconfig"),
		"--api-url", srv.URL,
		"--api-key", "key",
		"--api-secret", "secret",
	}
}

func TestCountUsesDefaultWallet(t *testing.T) {
	srv, p := newFakePlatform(t)

	out, err := runCLI(t, "", append(platformArgs(t, srv), "count", "usage")...)
	require.NoError(t, err)
	assert.Equal(t, "60\n", out)
	require.Len(t, p.queries, 1)
	assert.Contains(t, p.queries[0], "wallet_id=7")
}

func TestCountDateRange(t *testing.T) {
	srv, p := newFakePlatform(t)

	args := append(platformArgs(t, srv), "count", "usage", "--scope", "walletId=7",
		"--from", "2024-01-01", "--to", "2024-02-01")
	_, err := runCLI(t, "", args...)
	require.NoError(t, err)
	assert.Equal(t, `{"started_at":{"from":"2024-01-01","to":"2024-02-01"}}`, p.lastFilters())
}

func TestCountRejectsDateRangeWithoutDateField(t *testing.T) {
	srv, _ := newFakePlatform(t)

	defs := filepath.Join(t.TempDir(), "defs.yaml")
	require.NoError(t, os.WriteFile(defs, []byte(`resources:
  - name: plain
    path: /v0/wallets/-/payments
    columns:
      - {id: comment, label: Comment, field: comment}
`), 0644))

	args := append(platformArgs(t, srv), "--defs", defs, "count", "plain", "--from", "2024-01-01")
	_, err := runCLI(t, "", args...)
	assert.ErrorContains(t, err, "no date filter")
}

func TestListSplitsLargeWindows(t *testing.T) {
	srv, p := newFakePlatform(t)

	out, err := runCLI(t, "", append(platformArgs(t, srv), "list", "usage", "--last", "59", "--json")...)
	require.NoError(t, err)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 60)
	assert.Equal(t, "p0", decoded[0]["project"])
	assert.Equal(t, "p59", decoded[59]["project"])
	assert.Equal(t, "SUCCESS", decoded[0]["status"], "markup stripped")
	assert.LessOrEqual(t, p.maxLimit, 49)
}

func TestListTable(t *testing.T) {
	srv, _ := newFakePlatform(t)

	out, err := runCLI(t, "", append(platformArgs(t, srv), "list", "tx", "--sort", "date")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Price USD")
	assert.Contains(t, out, "topup 2")
	assert.Contains(t, out, "rows 0-2 of 3")
}

func TestListUnknownSortColumn(t *testing.T) {
	srv, _ := newFakePlatform(t)

	_, err := runCLI(t, "", append(platformArgs(t, srv), "list", "tx", "--sort", "nope")...)
	assert.Error(t, err)
}

func TestExportToDirectory(t *testing.T) {
	srv, _ := newFakePlatform(t)
	dir := t.TempDir()

	out, err := runCLI(t, "", append(platformArgs(t, srv), "export", "transactions", "--dest", dir)...)
	require.NoError(t, err)
	assert.Contains(t, out, "transactions")

	data, err := os.ReadFile(filepath.Join(dir, "transactions.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Date,Wallet,Price USD,Credits,Status,Comment,Invoice"), lines[0])
	assert.Contains(t, lines[1], "SUCCESS")
	assert.NotContains(t, lines[1], "<font")
}

func TestExportSeveralNeedsDirectory(t *testing.T) {
	srv, _ := newFakePlatform(t)

	args := append(platformArgs(t, srv), "export", "transactions", "usage", "--dest", "out.csv")
	_, err := runCLI(t, "", args...)
	assert.ErrorContains(t, err, "directory")
}

func TestResourcesCommand(t *testing.T) {
	out, err := runCLI(t, "", "--config", filepath.Join(t.TempDir(), "apiconfig"), "resources")
	require.NoError(t, err)
	for _, want := range []string{"transactions", "payments, tx", "usage", "rentals", "/v0/wallets/{walletId}/licensed-items-checkouts"} {
		assert.Contains(t, out, want)
	}
}

func TestResourceShortcut(t *testing.T) {
	srv, _ := newFakePlatform(t)

	out, err := runCLI(t, "", append(platformArgs(t, srv), "payments", "--json")...)
	require.NoError(t, err)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 3)
}

func TestLogsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osparc-tables.log")
	lines := []string{
		`{"level":"info","source":"api","time":"2024-03-01T10:00:00Z","message":"page loaded"}`,
		`{"level":"warn","source":"api","time":"2024-03-01T10:00:01Z","message":"rate limited"}`,
		`{"level":"error","source":"table","time":"2024-03-01T10:00:02Z","message":"row range unavailable","error":"502"}`,
		`not json`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	out, err := runCLI(t, "", "--config", filepath.Join(t.TempDir(), "apiconfig"), "logs", "--file", path, "--level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "rate limited")
	assert.Contains(t, out, "row range unavailable: 502")
	assert.NotContains(t, out, "page loaded")
	assert.Contains(t, out, "2 of 2 matching entries")

	out, err = runCLI(t, "", "--config", filepath.Join(t.TempDir(), "apiconfig"), "logs", "--file", path, "--source", "table", "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "3 entries, 1 errors, 1 warnings")
	assert.Contains(t, out, "sources: api, table")
}

func TestConfigInitThenShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osparc", "apiconfig")
	stdin := strings.Join([]string{
		"https://osparc.test", // platform
		"",                    // key, required: asked again
		"key",
		"s3cr3t",
		"8", // page concurrency
		"",  // cache rows
		"n", // proxy
		"y", // export storage
		"",  // region default
		"http://minio:9000",
		"",
	}, "\n") + "\n"

	out, err := runCLI(t, stdin, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Error: api key is required")
	assert.Contains(t, out, "Configuration saved")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, err = runCLI(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "https://osparc.test")
	assert.Contains(t, out, "<set (3 chars)>")
	assert.Contains(t, out, "<set (6 chars)>")
	assert.NotContains(t, out, "s3cr3t")
	assert.Contains(t, out, "Page Concurrency: 8")
	assert.Contains(t, out, "S3 Region:   eu-central-1")
	assert.Contains(t, out, "S3 Endpoint: http://minio:9000")

	// A second init without --force leaves the file alone.
	out, err = runCLI(t, "", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestConfigTestCommand(t *testing.T) {
	srv, _ := newFakePlatform(t)

	out, err := runCLI(t, "", append(platformArgs(t, srv), "config", "test")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Connection SUCCESSFUL")
	assert.Contains(t, out, "jane@example.com")
	assert.Contains(t, out, "Main (7)")
}

func TestConfigTestRequiresKey(t *testing.T) {
	t.Setenv("OSPARC_API_KEY", "")
	_, err := runCLI(t, "", "--config", filepath.Join(t.TempDir(), "apiconfig"), "config", "test")
	assert.Error(t, err)
}
