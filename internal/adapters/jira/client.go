/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "os"
    "strings"
    "time"

    "github.com/rodri-oliveira/pmo-backend/internal/config"
    "github.com/rs/zerolog"
)

type Client struct {
    baseURL  string
    token    string
    basic    string
    user     string
    pass     string
    http     *http.Client
    log      zerolog.Logger
    apiVer   string
    pageSize int
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL:  cfg.JiraBaseURL,
        token:    cfg.JiraPAT,
        basic:    getenvBasic(),
        user:     cfg.JiraUsername,
        pass:     cfg.JiraPassword,
        http:     &http.Client{Timeout: cfg.HTTPTimeout},
        log:      log,
        apiVer:   cfg.JiraAPIVersion,
        pageSize: cfg.JiraPageSize,
    }
}

// getenvBasic reads JIRA_BASIC_AUTH from environment if present (format: user:pass base64), optional
func getenvBasic() string {
    v := ""
    if s := strings.TrimSpace(os.Getenv("JIRA_BASIC_AUTH")); s != "" { v = s }
    return v
}

type UserRef struct {
    AccountID string
    Email     string
    Display   string
}

type Worklog struct {
    ID      string
    Author  UserRef
    Started *time.Time
    Seconds int
}

type Issue struct {
    Key              string
    Type             string
    Subtask          bool
    Summary          string
    Status           string
    ProjectKey       string
    ParentKey        string
    ParentSummary    string
    Assignee         UserRef
    Reporter         UserRef
    Creator          UserRef
    Created          *time.Time
    Updated          *time.Time
    TimeSpentSeconds int
}

type SearchPage struct {
    Total  int
    Issues []Issue
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if q != nil && len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doJSON(ctx context.Context, method, u string, body any) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return nil, err }
        payload = b
    }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        // fresh reader per attempt so a retried POST carries the full body
        var r io.Reader
        if payload != nil { r = bytes.NewReader(payload) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return nil, err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        if c.token != "" {
            req.Header.Set("Authorization", "Bearer "+c.token)
        } else if c.user != "" && c.pass != "" {
            req.SetBasicAuth(c.user, c.pass)
        } else if c.basic != "" {
            req.Header.Set("Authorization", "Basic "+c.basic)
        }
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            if resp.StatusCode >= 300 {
                b, _ := io.ReadAll(resp.Body)
                resp.Body.Close()
                // retry on 429/5xx
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return nil, fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                var out map[string]any
                err := json.NewDecoder(resp.Body).Decode(&out)
                resp.Body.Close()
                if err != nil { return nil, err }
                return out, nil
            }
        }
        // backoff
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return nil, lastErr
}

func (c *Client) Search(ctx context.Context, jql string, startAt, max int, fields []string) (SearchPage, error) {
    if jql == "" { return SearchPage{}, errors.New("jira: empty jql") }
    if max <= 0 { max = c.pageSize }
    fl := "*all"
    if len(fields) > 0 { fl = strings.Join(fields, ",") }
    var out map[string]any
    var err error
    if c.apiVer == "2" {
        q := url.Values{}
        q.Set("jql", jql)
        if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
        q.Set("maxResults", fmt.Sprint(max))
        q.Set("fields", fl)
        out, err = c.doJSON(ctx, http.MethodGet, c.apiURL("/rest/api/2/search", q), nil)
    } else {
        body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max, "fields": strings.Split(fl, ",")}
        out, err = c.doJSON(ctx, http.MethodPost, c.apiURL("/rest/api/3/search", nil), body)
    }
    if err != nil { return SearchPage{}, err }
    page := SearchPage{Total: toInt(out["total"])}
    if arr, ok := out["issues"].([]any); ok {
        page.Issues = make([]Issue, 0, len(arr))
        for _, it := range arr {
            if m, _ := it.(map[string]any); m != nil {
                page.Issues = append(page.Issues, parseIssue(m))
            }
        }
    }
    return page, nil
}

// SearchAll walks the full result set. The first page's total fixes the
// expected page count; the total is re-read on every page in case it
// drifts while we paginate. limit <= 0 means uncapped.
func (c *Client) SearchAll(ctx context.Context, jql string, fields []string, limit int) ([]Issue, error) {
    var all []Issue
    startAt := 0
    for {
        page, err := c.Search(ctx, jql, startAt, c.pageSize, fields)
        if err != nil { return nil, err }
        if len(page.Issues) == 0 { break }
        all = append(all, page.Issues...)
        startAt += len(page.Issues)
        if startAt >= page.Total { break }
        if limit > 0 && len(all) >= limit {
            all = all[:limit]
            break
        }
    }
    return all, nil
}

// Worklogs fetches all itemized worklog entries for an issue, paginated.
func (c *Client) Worklogs(ctx context.Context, key string) ([]Worklog, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    path := "/rest/api/3/issue/" + url.PathEscape(key) + "/worklog"
    if c.apiVer == "2" { path = "/rest/api/2/issue/" + url.PathEscape(key) + "/worklog" }
    var all []Worklog
    startAt := 0
    for {
        q := url.Values{}
        if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
        q.Set("maxResults", fmt.Sprint(c.pageSize))
        out, err := c.doJSON(ctx, http.MethodGet, c.apiURL(path, q), nil)
        if err != nil { return nil, err }
        total := toInt(out["total"])
        arr, _ := out["worklogs"].([]any)
        if len(arr) == 0 { break }
        for _, it := range arr {
            if m, _ := it.(map[string]any); m != nil {
                all = append(all, parseWorklog(m))
            }
        }
        startAt += len(arr)
        if startAt >= total { break }
    }
    return all, nil
}

// Issue fetches a single issue, used to resolve parent stubs not carried in the batch.
func (c *Client) Issue(ctx context.Context, key string) (Issue, error) {
    if key == "" { return Issue{}, errors.New("jira: empty issue key") }
    path := "/rest/api/3/issue/" + url.PathEscape(key)
    if c.apiVer == "2" { path = "/rest/api/2/issue/" + url.PathEscape(key) }
    q := url.Values{}
    q.Set("fields", "*all")
    out, err := c.doJSON(ctx, http.MethodGet, c.apiURL(path, q), nil)
    if err != nil { return Issue{}, err }
    return parseIssue(out), nil
}

func parseIssue(m map[string]any) Issue {
    is := Issue{Key: toStrAny(m["key"])}
    f, _ := m["fields"].(map[string]any)
    if f == nil { return is }
    if it, _ := f["issuetype"].(map[string]any); it != nil {
        is.Type = toStrAny(it["name"])
        is.Subtask, _ = it["subtask"].(bool)
    }
    is.Summary = toStrAny(f["summary"])
    if st, _ := f["status"].(map[string]any); st != nil { is.Status = toStrAny(st["name"]) }
    if pr, _ := f["project"].(map[string]any); pr != nil { is.ProjectKey = toStrAny(pr["key"]) }
    if pa, _ := f["parent"].(map[string]any); pa != nil {
        is.ParentKey = toStrAny(pa["key"])
        if pf, _ := pa["fields"].(map[string]any); pf != nil { is.ParentSummary = toStrAny(pf["summary"]) }
    }
    is.Assignee = parseUser(f["assignee"])
    is.Reporter = parseUser(f["reporter"])
    is.Creator = parseUser(f["creator"])
    is.Created = parseTimeUTC(f["created"])
    is.Updated = parseTimeUTC(f["updated"])
    is.TimeSpentSeconds = toInt(f["timespent"])
    return is
}

func parseWorklog(m map[string]any) Worklog {
    return Worklog{
        ID:      toStrAny(m["id"]),
        Author:  parseUser(m["author"]),
        Started: parseTimeUTC(m["started"]),
        Seconds: toInt(m["timeSpentSeconds"]),
    }
}

func parseUser(v any) UserRef {
    m, _ := v.(map[string]any)
    if m == nil { return UserRef{} }
    u := UserRef{
        AccountID: toStrAny(m["accountId"]),
        Email:     toStrAny(m["emailAddress"]),
        Display:   toStrAny(m["displayName"]),
    }
    // server/DC deployments carry name/key instead of accountId
    if u.AccountID == "" { u.AccountID = toStrAny(m["name"]) }
    if u.AccountID == "" { u.AccountID = toStrAny(m["key"]) }
    return u
}

func parseTimeUTC(v any) *time.Time {
    s, _ := v.(string)
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil {
            tt := t.UTC(); return &tt
        }
    }
    return nil
}

func toStrAny(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
    switch t := v.(type) {
    case float64:
        return int(t)
    case int:
        return t
    case int64:
        return int(t)
    case json.Number:
        i, _ := t.Int64()
        return int(i)
    default:
        return 0
    }
}
