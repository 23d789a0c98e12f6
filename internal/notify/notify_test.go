package notify

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type recordingChannel struct {
	name string
	err  error

	mu    sync.Mutex
	drops []PriceDrop
}

func (r *recordingChannel) Name() string { return r.name }

func (r *recordingChannel) SendPriceDrop(d PriceDrop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drops = append(r.drops, d)
	return r.err
}

func (r *recordingChannel) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drops)
}

var sampleDrop = PriceDrop{
	EntryID:   "item:abc",
	Name:      "iPhone 13 / 128GB",
	Category:  "手機",
	Condition: "good",
	OldPrice:  12000,
	NewPrice:  10500,
}

func TestBarkSendPriceDrop(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bark := NewBarkService("devicekey").WithBaseURL(srv.URL + "/")
	require.NoError(t, bark.SendPriceDrop(sampleDrop))

	parts := strings.Split(strings.TrimPrefix(gotPath, "/"), "/")
	require.Len(t, parts, 3, "slashes in the item name must be escaped")
	assert.Equal(t, "devicekey", parts[0])

	content, err := url.PathUnescape(parts[2])
	require.NoError(t, err)
	assert.Contains(t, content, "iPhone 13 / 128GB")
	assert.Contains(t, content, "NT$12000")
	assert.Contains(t, content, "NT$10500")
}

func TestBarkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewBarkService("devicekey").WithBaseURL(srv.URL).SendPriceDrop(sampleDrop)
	assert.ErrorContains(t, err, "unexpected status code: 500")

	err = NewBarkService("").WithBaseURL(srv.URL).SendPriceDrop(sampleDrop)
	assert.ErrorContains(t, err, "invalid bark key")
}

func TestValidateBarkKey(t *testing.T) {
	assert.True(t, ValidateBarkKey("abcDEF123"))
	assert.False(t, ValidateBarkKey(""))
	assert.False(t, ValidateBarkKey("a b"))
	assert.False(t, ValidateBarkKey("a/b"))
}

func TestEmailService(t *testing.T) {
	disabled := NewEmailService("smtp.example.com", "", "", "bot@example.com", "me@example.com", 587)
	assert.False(t, disabled.Enabled())
	assert.ErrorContains(t, disabled.SendPriceDrop(sampleDrop), "not configured")

	noRecipient := NewEmailService("smtp.example.com", "user", "pass", "bot@example.com", "nobody", 587)
	assert.False(t, noRecipient.Enabled())

	enabled := NewEmailService("smtp.example.com", "user", "pass", "bot@example.com", "me@example.com", 587)
	assert.True(t, enabled.Enabled())

	msg := enabled.buildMessage("subject", "<p>body</p>")
	assert.True(t, strings.HasPrefix(msg, "From: bot@example.com\r\nTo: me@example.com\r\n"))
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>body</p>")
}

func TestBuildPriceDropHTML(t *testing.T) {
	d := sampleDrop
	d.Name = "<script>x</script>"

	body := buildPriceDropHTML(d, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	assert.Contains(t, body, "NT$1500")
	assert.Contains(t, body, "NT$12000")
	assert.Contains(t, body, "NT$10500")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "2026-01-02 03:04:05")
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("a@b.co"))
	assert.False(t, ValidateEmail("a@b"))
	assert.False(t, ValidateEmail("@b.co"))
	assert.False(t, ValidateEmail("a@@b.co"))
}

func TestDispatcherFansOut(t *testing.T) {
	ok := &recordingChannel{name: "ok"}
	bad := &recordingChannel{name: "bad", err: errors.New("boom")}

	d := NewDispatcher(quietLog(), ok)
	d.AddChannel(bad)
	assert.Equal(t, []string{"ok", "bad"}, d.Channels())

	err := d.NotifyPriceDrop(sampleDrop)
	require.Error(t, err)
	assert.ErrorContains(t, err, "bad: boom")

	assert.Equal(t, 1, ok.count(), "a failing channel must not stop the others")
	assert.Equal(t, 1, bad.count())
	assert.Equal(t, sampleDrop, ok.drops[0])
}

func TestDispatcherWithoutChannels(t *testing.T) {
	assert.NoError(t, NewDispatcher(nil).NotifyPriceDrop(sampleDrop))
}
