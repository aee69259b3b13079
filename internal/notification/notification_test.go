package notification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMIMEContainsBodyAndAttachment(t *testing.T) {
	msg := Message{
		Recipient: "alice@example.com",
		Subject:   "RI Utilization Report – 2024-12-20 (1 alerts: eastus: 1)",
		HTMLBody:  "<html><body><h3>report</h3></body></html>",
		Attachments: []Attachment{
			{Name: "report.csv", ContentType: "text/csv", Content: []byte("a,b\n1,2\n")},
		},
	}

	raw, err := buildMIME("reports@example.com", msg)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "From: reports@example.com")
	assert.Contains(t, body, "To: alice@example.com")
	assert.Contains(t, body, "Subject: RI Utilization Report – 2024-12-20 (1 alerts: eastus: 1)")
	assert.Contains(t, body, "Content-Type: multipart/mixed; boundary=")
	assert.Contains(t, body, "<h3>report</h3>")
	assert.Contains(t, body, `attachment; filename="report.csv"`)
	assert.Contains(t, body, base64.StdEncoding.EncodeToString([]byte("a,b\n1,2\n")))
}

func TestSendLogicAppPayload(t *testing.T) {
	var payload struct {
		Recipient   string `json:"recipient"`
		Subject     string `json:"subject"`
		HTML        string `json:"html"`
		Attachments []struct {
			Name         string `json:"Name"`
			ContentBytes string `json:"ContentBytes"`
		} `json:"attachments"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewService(Config{LogicAppEndpoint: srv.URL}, slog.Default())
	require.Equal(t, []Channel{ChannelLogicApp}, svc.Channels())

	err := svc.Send(context.Background(), Message{
		Recipient: "bob@example.com",
		Subject:   "subject",
		HTMLBody:  "<p>hi</p>",
		Attachments: []Attachment{
			{Name: "r.csv", ContentType: "text/csv", Content: []byte("x,y")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "bob@example.com", payload.Recipient)
	assert.Equal(t, "subject", payload.Subject)
	assert.Equal(t, "<p>hi</p>", payload.HTML)
	require.Len(t, payload.Attachments, 1)
	assert.Equal(t, "r.csv", payload.Attachments[0].Name)

	decoded, err := base64.StdEncoding.DecodeString(payload.Attachments[0].ContentBytes)
	require.NoError(t, err)
	assert.Equal(t, "x,y", string(decoded))
}

func TestSendLogicAppErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewService(Config{LogicAppEndpoint: srv.URL}, slog.Default())
	err := svc.Send(context.Background(), Message{Recipient: "bob@example.com"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "502"))
}

func TestSendWithoutChannels(t *testing.T) {
	svc := NewService(Config{}, slog.Default())
	err := svc.Send(context.Background(), Message{Recipient: "bob@example.com"})
	require.Error(t, err)
}
