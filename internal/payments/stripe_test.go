package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"glxy/internal/domain"

	"github.com/stripe/stripe-go/v79"
)

const testSecret = "whsec_test"

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

const completedPayload = `{
  "id": "evt_1",
  "object": "event",
  "api_version": "2020-08-27",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "payment_status": "paid",
      "metadata": {"userId": "u1", "stardustAmount": "100"}
    }
  }
}`

func TestVerifier_CheckoutCompleted(t *testing.T) {
	v := NewVerifier(testSecret)
	payload := []byte(completedPayload)

	ev, err := v.Verify(payload, sign(payload, testSecret, time.Now()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != "checkout.session.completed" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.SessionID != "cs_test_1" || ev.PaymentStatus != "paid" {
		t.Fatalf("unexpected session: %+v", ev)
	}
	if ev.Metadata["userId"] != "u1" || ev.Metadata["stardustAmount"] != "100" {
		t.Fatalf("unexpected metadata: %v", ev.Metadata)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier(testSecret)
	payload := []byte(completedPayload)

	cases := map[string]string{
		"wrong secret": sign(payload, "whsec_other", time.Now()),
		"too old":      sign(payload, testSecret, time.Now().Add(-10*time.Minute)),
		"missing":      "",
		"garbage":      "t=abc,v1=zz",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(payload, header); err == nil {
				t.Fatal("expected verification error")
			}
		})
	}

	tampered := []byte(completedPayload[:len(completedPayload)-1] + " }")
	if _, err := v.Verify(tampered, sign(payload, testSecret, time.Now())); err == nil {
		t.Fatal("expected tampered payload to fail")
	}

	if _, err := NewVerifier("").Verify(payload, sign(payload, testSecret, time.Now())); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestVerifier_OtherEventsHaveNoSession(t *testing.T) {
	v := NewVerifier(testSecret)
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	ev, err := v.Verify(payload, sign(payload, testSecret, time.Now()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ev.Type != "customer.created" || ev.SessionID != "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestCheckout_CreateSession(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_9","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_9"}`)
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:           stripe.String(srv.URL),
		HTTPClient:    srv.Client(),
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	c := NewCheckout("sk_test_123", "https://glxy.example/ok", "https://glxy.example/cancel", backend)

	sess, err := c.CreateSession(context.Background(), domain.CheckoutRequest{UserID: "u1", AmountUSD: 5, Stardust: 100})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.SessionID != "cs_test_9" || sess.URL == "" || sess.Stardust != 100 {
		t.Fatalf("unexpected session: %+v", sess)
	}

	want := map[string]string{
		"mode":                                   "payment",
		"client_reference_id":                    "u1",
		"metadata[userId]":                       "u1",
		"metadata[stardustAmount]":               "100",
		"line_items[0][price_data][unit_amount]": "500",
		"line_items[0][price_data][currency]":    "usd",
	}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("form[%q] = %q, want %q", k, form[k], v)
		}
	}
}

func TestCheckout_NotConfigured(t *testing.T) {
	c := NewCheckout("", "", "", nil)
	if _, err := c.CreateSession(context.Background(), domain.CheckoutRequest{UserID: "u1", AmountUSD: 5, Stardust: 100}); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
