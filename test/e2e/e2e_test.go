//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type cfg struct {
	APIBase     string // http://localhost:8080
	MailhogBase string // http://localhost:8025
	WaitEmail   time.Duration
}

func loadCfg() cfg {
	return cfg{
		APIBase:     getenv("E2E_API_BASE", "http://localhost:8080"),
		MailhogBase: getenv("E2E_MAILHOG_BASE", "http://localhost:8025"),
		WaitEmail:   mustParseDur(getenv("E2E_WAIT_EMAIL", "45s")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustParseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

type notificationResp struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Recipient  string `json:"recipient"`
	RetryCount int    `json:"retry_count"`
}

// --- Mailhog API v2 response (только нужные поля)
type mailhogMessages struct {
	Total    int          `json:"total"`
	Messages []mailhogMsg `json:"items"`
}
type mailhogMsg struct {
	To      []mailhogPerson `json:"To"`
	Content struct {
		Headers map[string][]string `json:"Headers"`
		Body    string              `json:"Body"`
	} `json:"Content"`
}
type mailhogPerson struct {
	Mailbox string `json:"Mailbox"`
	Domain  string `json:"Domain"`
}

func (p mailhogPerson) Email() string {
	if p.Domain == "" {
		return p.Mailbox
	}
	return p.Mailbox + "@" + p.Domain
}

// --- helpers

func postJSON(t *testing.T, url string, in any, out any, wantCode int) {
	t.Helper()
	var rd io.Reader
	if in != nil {
		b, _ := json.Marshal(in)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(http.MethodPost, url, rd)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != wantCode {
		t.Fatalf("POST %s => %d (want %d): %s", url, resp.StatusCode, wantCode, string(body))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("unmarshal %s: %v; body=%s", url, err, string(body))
		}
	}
}

func getJSON(t *testing.T, url string, into any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	all, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(all, into))
}

func waitHealthy(t *testing.T, base string) {
	t.Helper()
	for {
		t.Log("check api-gateway healthy")
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			if resp.StatusCode == 200 {
				resp.Body.Close()
				return
			}
			resp.Body.Close()
		}
		time.Sleep(1 * time.Second)
	}
}

// --- сам тест

func Test_NotificationCreation_LeadsToEmail(t *testing.T) {
	c := loadCfg()
	waitHealthy(t, c.APIBase)

	user := fmt.Sprintf("e2e_%d", time.Now().UnixNano())
	rcpt := user + "@courier.dev"

	var created notificationResp
	postJSON(t, c.APIBase+"/v1/notifications", map[string]any{
		"user_id":   user,
		"channel":   "email",
		"recipient": rcpt,
		"subject":   "Welcome aboard",
		"message":   "Glad to have you with us.",
	}, &created, 201)

	require.NotEmpty(t, created.ID)
	require.Equal(t, "pending", created.Status)
	t.Logf("notification created (id=%s)", created.ID)

	deadline := time.Now().Add(c.WaitEmail)
	for time.Now().Before(deadline) {
		msgs := fetchMailhog(t, c, rcpt)
		for _, m := range msgs {
			subj := headerFirst(m.Content.Headers, "Subject")
			if strings.Contains(subj, "Welcome aboard") {
				t.Logf("got email: %q", subj)

				var n notificationResp
				getJSON(t, c.APIBase+"/v1/notifications/"+created.ID, &n)
				require.Equal(t, "sent", n.Status)

				// the sent row refuses another cancel
				postJSON(t, c.APIBase+"/v1/notifications/"+created.ID+"/cancel", nil, nil, 409)
				return
			}
		}
		time.Sleep(1 * time.Second)
	}
	t.Fatalf("email didn't arrive in time for %s", rcpt)
}

func fetchMailhog(t *testing.T, c cfg, toEmail string) []mailhogMsg {
	t.Helper()
	var out mailhogMessages
	getJSON(t, c.MailhogBase+"/api/v2/messages", &out)
	var res []mailhogMsg
	for _, m := range out.Messages {
		for _, rcpt := range m.To {
			if strings.EqualFold(rcpt.Email(), toEmail) {
				res = append(res, m)
				break
			}
		}
	}
	return res
}

func headerFirst(h map[string][]string, key string) string {
	for k, v := range h {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
