package notifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"EarningsSentinel/internal/model"
)

func newTestNotifier(t *testing.T, handler http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL
	return tn
}

func TestSend_Payload(t *testing.T) {
	var got sendMessageRequest
	tn := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	})

	if err := tn.Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.ChatID != "42" || got.Text != "<b>hi</b>" || got.ParseMode != "HTML" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestSendWithRetry_PermanentClientError(t *testing.T) {
	var calls atomic.Int32
	tn := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	})

	err := tn.SendWithRetry(context.Background(), "x", 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestSendWithRetry_RecoversFromServerError(t *testing.T) {
	var calls atomic.Int32
	tn := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})

	if err := tn.SendWithRetry(context.Background(), "x", 2); err != nil {
		t.Fatalf("SendWithRetry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestStartPolling_DispatchesCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var polls atomic.Int32
	replies := make(chan string, 1)
	tn := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if polls.Add(1) == 1 {
				w.Write([]byte(`{"ok":true,"result":[` +
					`{"update_id":6,"message":{"text":"/week","chat":{"id":999}}},` +
					`{"update_id":7,"message":{"text":" /today ","chat":{"id":42}}}]}`))
				return
			}
			if r.URL.Query().Get("offset") != "8" {
				t.Errorf("expected offset 8, got %s", r.URL.Query().Get("offset"))
			}
			<-r.Context().Done()
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var req sendMessageRequest
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &req)
			replies <- req.Text
			w.Write([]byte(`{"ok":true}`))
		}
	})

	var handled []string
	done := make(chan struct{})
	go func() {
		tn.StartPolling(ctx, func(_ context.Context, cmd string) string {
			handled = append(handled, cmd)
			return "reply to " + cmd
		})
		close(done)
	}()

	if got := <-replies; got != "reply to /today" {
		t.Errorf("unexpected reply %q", got)
	}
	cancel()
	<-done

	if len(handled) != 1 || handled[0] != "/today" {
		t.Errorf("expected only the configured chat's command handled, got %v", handled)
	}
}

func TestFormatCalendar(t *testing.T) {
	start, end := model.MustDate("2018-01-04"), model.MustDate("2018-01-06")
	anns := []model.Announcement{
		model.NewAnnouncement(start, "CMC", model.BeforeOpen),
		model.NewAnnouncement(start, "LNDC", model.AfterClose).WithMarketCap(decimal.NewFromInt(312)),
		model.NewAnnouncement(model.MustDate("2018-01-05"), "A&B", model.Unspecified),
	}

	out := FormatCalendar(start, end, anns)
	for _, want := range []string{
		"2018-01-04 → 2018-01-06",
		"<code>CMC</code>",
		"<code>LNDC</code> ($312M)",
		"<code>A&amp;B</code>",
		"Sat 01-06</b>\n  (none)",
		"Total: 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("calendar missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "before open") > strings.Index(out, "after close") {
		t.Errorf("before-open group should precede after-close:\n%s", out)
	}
}

func TestFormatDigest_Empty(t *testing.T) {
	out := FormatDigest(model.MustDate("2018-01-06"), nil)
	if !strings.Contains(out, "No announcements") {
		t.Errorf("unexpected digest: %s", out)
	}
}

func TestFormatDigest_TruncatesBusyDay(t *testing.T) {
	day := model.MustDate("2018-01-04")
	var anns []model.Announcement
	for i := 0; i < maxPerDay+5; i++ {
		anns = append(anns, model.NewAnnouncement(day, "T"+strings.Repeat("X", i%3), model.AfterClose))
	}
	out := FormatDigest(day, anns)
	if !strings.Contains(out, "+5 more") {
		t.Errorf("expected truncation marker:\n%s", out)
	}
}
