package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"hrops/internal/app/server"
	"hrops/internal/domain/auth"
	"hrops/internal/platform/config"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testConfig(dbURL, certDir string) config.Config {
	return config.Config{
		Addr:               ":0",
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		Environment:        "test",
		CertificateDir:     certDir,
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		EmailFrom:          "no-reply@test.local",
		RunMigrations:      true,
		RunSeed:            true,
		MaxBodyBytes:       1 << 20,
		MetricsEnabled:     true,
		MonthlyCasualDays:  1,
		MonthlySickDays:    0.5,
		LOPBalanceCeiling:  10,
		LOPMonthlyCap:      5,
		CasualMonthlyCap:   10,
		CasualBalanceLimit: 99,
	}
}

func newTestApp(t *testing.T) (*server.App, *httptest.Server) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL, t.TempDir())
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)
	return app, ts
}

func TestLeaveLifecycleJourney(t *testing.T) {
	app, ts := newTestApp(t)
	client := ts.Client()
	cfg := app.Config

	adminToken, adminID := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	suffix := time.Now().UnixNano()
	managerEmail := fmt.Sprintf("mgr-%d@example.com", suffix)
	managerID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":          "Mara",
		"lastName":           "Manager",
		"email":              managerEmail,
		"password":           "Manager123!",
		"role":               auth.RoleManager,
		"reportingManagerId": adminID,
	})

	empEmail := fmt.Sprintf("emp-%d@example.com", suffix)
	empID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":          "Evan",
		"lastName":           "Employee",
		"email":              empEmail,
		"password":           "Employee123!",
		"role":               auth.RoleEmployee,
		"reportingManagerId": managerID,
	})

	adjustBalance(t, client, ts.URL, adminToken, empID, "casual", 10)

	empToken, _ := login(t, client, ts.URL, empEmail, "Employee123!")
	managerToken, _ := login(t, client, ts.URL, managerEmail, "Manager123!")

	week1 := nextMonday(time.Now().AddDate(0, 0, 8))
	week2 := week1.AddDate(0, 0, 7)

	// Two full days, manager then super admin must both sign off.
	req1 := applyLeave(t, client, ts.URL, empToken, map[string]any{
		"leaveType": "casual",
		"startDate": dateString(week1),
		"endDate":   dateString(week1.AddDate(0, 0, 1)),
		"reason":    "family visit",
	})
	assertCasualBalance(t, client, ts.URL, empToken, "8")

	result := decide(t, client, ts.URL, managerToken, "/requests/"+req1+"/approve", map[string]any{"comment": "ok"})
	if result.Status != "pending" {
		t.Fatalf("expected pending after manager approval, got %s", result.Status)
	}

	result = decide(t, client, ts.URL, adminToken, "/requests/"+req1+"/approve", map[string]any{"comment": "approved"})
	if result.Status != "approved" {
		t.Fatalf("expected approved after super admin approval, got %s", result.Status)
	}

	// Rejection refunds the debit.
	req2 := applyLeave(t, client, ts.URL, empToken, map[string]any{
		"leaveType": "casual",
		"startDate": dateString(week1.AddDate(0, 0, 2)),
		"endDate":   dateString(week1.AddDate(0, 0, 3)),
		"reason":    "errand",
	})
	assertCasualBalance(t, client, ts.URL, empToken, "6")

	result = decide(t, client, ts.URL, managerToken, "/requests/"+req2+"/reject", map[string]any{"comment": "coverage gap"})
	if result.Status != "rejected" {
		t.Fatalf("expected rejected, got %s", result.Status)
	}
	assertCasualBalance(t, client, ts.URL, empToken, "8")

	// Partial approval: two days kept, the rest auto-rejected and refunded.
	req3 := applyLeave(t, client, ts.URL, empToken, map[string]any{
		"leaveType": "casual",
		"startDate": dateString(week2),
		"endDate":   dateString(week2.AddDate(0, 0, 4)),
		"reason":    "trip",
	})
	assertCasualBalance(t, client, ts.URL, empToken, "3")

	days := requestDays(t, client, ts.URL, empToken, req3)
	if len(days) != 5 {
		t.Fatalf("expected 5 leave days, got %d", len(days))
	}
	result = decide(t, client, ts.URL, managerToken, "/requests/"+req3+"/approve", map[string]any{
		"comment": "first two only",
		"dayIds":  []string{days[0], days[1]},
	})
	if result.Approved != 2 || result.Rejected != 3 {
		t.Fatalf("expected 2 approved / 3 rejected, got %d / %d", result.Approved, result.Rejected)
	}
	if result.Status != "partially_approved" {
		t.Fatalf("expected partially_approved, got %s", result.Status)
	}
	assertCasualBalance(t, client, ts.URL, empToken, "6")

	// LOP converts to casual on admin action.
	lopReq := applyLeave(t, client, ts.URL, empToken, map[string]any{
		"leaveType": "lop",
		"startDate": dateString(week2.AddDate(0, 0, 7)),
		"endDate":   dateString(week2.AddDate(0, 0, 7)),
		"reason":    "unpaid day",
	})
	resp := postJSON(t, client, ts.URL+"/api/v1/leave/requests/"+lopReq+"/convert", adminToken, map[string]any{})
	if resp.Error != nil {
		t.Fatalf("convert failed: %v", resp.Error.Message)
	}
	converted := getRequest(t, client, ts.URL, empToken, lopReq)
	if converted.Type != "casual" {
		t.Fatalf("expected converted request to be casual, got %s", converted.Type)
	}
	assertCasualBalance(t, client, ts.URL, empToken, "5")

	// Decisions fan out as notifications to the requester.
	waitForUnread(t, client, ts.URL, empToken)

	// Admin surfaces: audit trail and job trigger.
	auditResp := getJSON(t, client, ts.URL+"/api/v1/audit", adminToken)
	var auditPayload struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(auditResp.Data, &auditPayload); err != nil {
		t.Fatalf("failed to decode audit response: %v", err)
	}
	if auditPayload.Total == 0 {
		t.Fatal("expected audit events to be recorded")
	}

	jobResp := postJSON(t, client, ts.URL+"/api/v1/leave/jobs/monthly_accrual/run", adminToken, nil)
	if jobResp.Error != nil {
		t.Fatalf("job run failed: %v", jobResp.Error.Message)
	}
}

func TestEditAndDeleteRestoreBalance(t *testing.T) {
	app, ts := newTestApp(t)
	client := ts.Client()
	cfg := app.Config

	adminToken, adminID := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	suffix := time.Now().UnixNano()
	empEmail := fmt.Sprintf("edit-%d@example.com", suffix)
	empID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":          "Edda",
		"lastName":           "Editor",
		"email":              empEmail,
		"password":           "Editor123!",
		"role":               auth.RoleEmployee,
		"reportingManagerId": adminID,
	})
	adjustBalance(t, client, ts.URL, adminToken, empID, "casual", 10)

	empToken, _ := login(t, client, ts.URL, empEmail, "Editor123!")

	week := nextMonday(time.Now().AddDate(0, 0, 21))
	reqID := applyLeave(t, client, ts.URL, empToken, map[string]any{
		"leaveType": "casual",
		"startDate": dateString(week),
		"endDate":   dateString(week.AddDate(0, 0, 1)),
		"reason":    "original plan",
	})
	assertCasualBalance(t, client, ts.URL, empToken, "8")

	resp := putJSON(t, client, ts.URL+"/api/v1/leave/requests/"+reqID, empToken, map[string]any{
		"leaveType": "casual",
		"startDate": dateString(week),
		"endDate":   dateString(week.AddDate(0, 0, 2)),
		"reason":    "extended plan",
	})
	if resp.Error != nil {
		t.Fatalf("edit failed: %v", resp.Error.Message)
	}
	assertCasualBalance(t, client, ts.URL, empToken, "7")

	edited := getRequest(t, client, ts.URL, empToken, reqID)
	if edited.Status != "pending" {
		t.Fatalf("expected edit to re-open request, got %s", edited.Status)
	}

	delResp := deleteJSON(t, client, ts.URL+"/api/v1/leave/requests/"+reqID, empToken)
	if delResp.Error != nil {
		t.Fatalf("delete failed: %v", delResp.Error.Message)
	}
	assertCasualBalance(t, client, ts.URL, empToken, "10")
}

func TestForceStatusPartialOverride(t *testing.T) {
	app, ts := newTestApp(t)
	client := ts.Client()
	cfg := app.Config

	adminToken, adminID := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	suffix := time.Now().UnixNano()
	empEmail := fmt.Sprintf("force-%d@example.com", suffix)
	empID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":          "Faye",
		"lastName":           "Forced",
		"email":              empEmail,
		"password":           "Forced123!",
		"role":               auth.RoleEmployee,
		"reportingManagerId": adminID,
	})
	adjustBalance(t, client, ts.URL, adminToken, empID, "casual", 10)

	empToken, _ := login(t, client, ts.URL, empEmail, "Forced123!")

	week := nextMonday(time.Now().AddDate(0, 0, 8))
	reqID := applyLeave(t, client, ts.URL, empToken, map[string]any{
		"leaveType": "casual",
		"startDate": dateString(week),
		"endDate":   dateString(week.AddDate(0, 0, 2)),
		"reason":    "offsite",
	})
	assertCasualBalance(t, client, ts.URL, empToken, "7")

	days := requestDays(t, client, ts.URL, empToken, reqID)
	if len(days) != 3 {
		t.Fatalf("expected 3 leave days, got %d", len(days))
	}

	// One admin action: keep the first day, reject and refund the rest.
	result := decide(t, client, ts.URL, adminToken, "/requests/"+reqID+"/status", map[string]any{
		"status":  "partially_approved",
		"dayIds":  []string{days[0]},
		"comment": "only the first day is covered",
	})
	if result.Approved != 1 || result.Rejected != 2 {
		t.Fatalf("expected 1 approved / 2 rejected, got %d / %d", result.Approved, result.Rejected)
	}
	if result.Status != "partially_approved" {
		t.Fatalf("expected partially_approved, got %s", result.Status)
	}
	assertCasualBalance(t, client, ts.URL, empToken, "9")

	// Wholesale approval re-charges the previously refunded days.
	result = decide(t, client, ts.URL, adminToken, "/requests/"+reqID+"/status", map[string]any{
		"status":  "approved",
		"comment": "coverage found after all",
	})
	if result.Status != "approved" {
		t.Fatalf("expected approved, got %s", result.Status)
	}
	assertCasualBalance(t, client, ts.URL, empToken, "7")

	// Wholesale rejection refunds everything still held.
	result = decide(t, client, ts.URL, adminToken, "/requests/"+reqID+"/status", map[string]any{
		"status":  "rejected",
		"comment": "plans changed",
	})
	if result.Status != "rejected" {
		t.Fatalf("expected rejected, got %s", result.Status)
	}
	assertCasualBalance(t, client, ts.URL, empToken, "10")

	// A day selection makes no sense with a wholesale status.
	resp := postJSON(t, client, ts.URL+"/api/v1/leave/requests/"+reqID+"/status", adminToken, map[string]any{
		"status": "approved",
		"dayIds": []string{days[0]},
	})
	if resp.Error == nil {
		t.Fatal("expected a day selection with a wholesale status to fail")
	}
}

func TestNonTerminalApprovalKeepsDerivedStatus(t *testing.T) {
	app, ts := newTestApp(t)
	client := ts.Client()
	cfg := app.Config

	adminToken, adminID := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	suffix := time.Now().UnixNano()
	managerEmail := fmt.Sprintf("dmgr-%d@example.com", suffix)
	managerID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":          "Dana",
		"lastName":           "Direct",
		"email":              managerEmail,
		"password":           "Direct123!",
		"role":               auth.RoleManager,
		"reportingManagerId": adminID,
	})
	empEmail := fmt.Sprintf("demp-%d@example.com", suffix)
	empID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":          "Drew",
		"lastName":           "Report",
		"email":              empEmail,
		"password":           "Report123!",
		"role":               auth.RoleEmployee,
		"reportingManagerId": managerID,
	})
	adjustBalance(t, client, ts.URL, adminToken, empID, "casual", 10)

	empToken, _ := login(t, client, ts.URL, empEmail, "Report123!")
	managerToken, _ := login(t, client, ts.URL, managerEmail, "Direct123!")

	week := nextMonday(time.Now().AddDate(0, 0, 8))
	reqID := applyLeave(t, client, ts.URL, empToken, map[string]any{
		"leaveType": "casual",
		"startDate": dateString(week),
		"endDate":   dateString(week.AddDate(0, 0, 2)),
		"reason":    "conference",
	})
	assertCasualBalance(t, client, ts.URL, empToken, "7")

	days := requestDays(t, client, ts.URL, empToken, reqID)
	if len(days) != 3 {
		t.Fatalf("expected 3 leave days, got %d", len(days))
	}

	result := decide(t, client, ts.URL, managerToken, "/requests/"+reqID+"/days/"+days[2]+"/reject", map[string]any{
		"comment": "last day clashes",
	})
	if result.Status != "pending" {
		t.Fatalf("expected pending after single-day rejection, got %s", result.Status)
	}
	assertCasualBalance(t, client, ts.URL, empToken, "8")

	// The manager is not the terminal tier, but the mixed day set must
	// still read partially_approved rather than plain pending.
	result = decide(t, client, ts.URL, managerToken, "/requests/"+reqID+"/approve", map[string]any{"comment": "rest is fine"})
	if result.Status != "partially_approved" {
		t.Fatalf("expected partially_approved after manager approval, got %s", result.Status)
	}

	// The terminal sign-off cannot improve on a mixed day set.
	result = decide(t, client, ts.URL, adminToken, "/requests/"+reqID+"/approve", map[string]any{"comment": "agreed"})
	if result.Status != "partially_approved" {
		t.Fatalf("expected partially_approved after terminal sign-off, got %s", result.Status)
	}
	assertCasualBalance(t, client, ts.URL, empToken, "8")
}

func nextMonday(from time.Time) time.Time {
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func dateString(t time.Time) string {
	return t.Format("2006-01-02")
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) (string, string) {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	var payload struct {
		Token    string `json:"token"`
		Employee struct {
			ID string `json:"id"`
		} `json:"employee"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if payload.Token == "" {
		t.Fatalf("expected token for %s", email)
	}
	return payload.Token, payload.Employee.ID
}

func createEmployee(t *testing.T, client *http.Client, baseURL, token string, body map[string]any) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/employees", token, body)
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode employee response: %v", err)
	}
	if payload.ID == "" {
		t.Fatalf("expected employee id, error: %+v", resp.Error)
	}
	return payload.ID
}

func adjustBalance(t *testing.T, client *http.Client, baseURL, token, employeeID, leaveType string, amount float64) {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/leave/balances/adjust", token, map[string]any{
		"employeeId": employeeID,
		"leaveType":  leaveType,
		"amount":     amount,
	})
	if resp.Error != nil {
		t.Fatalf("balance adjust failed: %v", resp.Error.Message)
	}
}

func applyLeave(t *testing.T, client *http.Client, baseURL, token string, body map[string]any) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/leave/requests", token, body)
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode apply response: %v", err)
	}
	if payload.ID == "" {
		t.Fatalf("expected request id, error: %+v", resp.Error)
	}
	return payload.ID
}

type decisionResult struct {
	Approved int    `json:"approved"`
	Rejected int    `json:"rejected"`
	Status   string `json:"status"`
}

func decide(t *testing.T, client *http.Client, baseURL, token, path string, body map[string]any) decisionResult {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/leave"+path, token, body)
	if resp.Error != nil {
		t.Fatalf("decision %s failed: %v", path, resp.Error.Message)
	}
	var result decisionResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("failed to decode decision response: %v", err)
	}
	return result
}

type requestView struct {
	Type   string `json:"leaveType"`
	Status string `json:"status"`
	Days   []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"days"`
}

func getRequest(t *testing.T, client *http.Client, baseURL, token, requestID string) requestView {
	t.Helper()
	resp := getJSON(t, client, baseURL+"/api/v1/leave/requests/"+requestID, token)
	if resp.Error != nil {
		t.Fatalf("get request failed: %v", resp.Error.Message)
	}
	var view requestView
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("failed to decode request view: %v", err)
	}
	return view
}

func requestDays(t *testing.T, client *http.Client, baseURL, token, requestID string) []string {
	t.Helper()
	view := getRequest(t, client, baseURL, token, requestID)
	ids := make([]string, 0, len(view.Days))
	for _, d := range view.Days {
		ids = append(ids, d.ID)
	}
	return ids
}

func assertCasualBalance(t *testing.T, client *http.Client, baseURL, token, want string) {
	t.Helper()
	resp := getJSON(t, client, baseURL+"/api/v1/leave/balance", token)
	if resp.Error != nil {
		t.Fatalf("get balance failed: %v", resp.Error.Message)
	}
	var payload struct {
		Casual string `json:"casual"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode balance: %v", err)
	}
	got, err := strconv.ParseFloat(payload.Casual, 64)
	if err != nil {
		t.Fatalf("failed to parse casual balance %q: %v", payload.Casual, err)
	}
	wantF, err := strconv.ParseFloat(want, 64)
	if err != nil {
		t.Fatalf("bad expected balance %q: %v", want, err)
	}
	if got != wantF {
		t.Fatalf("expected casual balance %s, got %s", want, payload.Casual)
	}
}

func waitForUnread(t *testing.T, client *http.Client, baseURL, token string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := getJSON(t, client, baseURL+"/api/v1/notifications/unread-count", token)
		var payload struct {
			Unread int `json:"unread"`
		}
		if err := json.Unmarshal(resp.Data, &payload); err == nil && payload.Unread > 0 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("expected unread notifications for the requester")
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodPost, url, token, body)
}

func putJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodPut, url, token, body)
}

func deleteJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodDelete, url, token, nil)
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodGet, url, token, nil)
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any) envelope {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode envelope from %s %s (status %d): %s", method, url, resp.StatusCode, raw)
	}
	return env
}
