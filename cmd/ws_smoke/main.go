// Command ws_smoke signs in against a running server (DEV_MODE), opens the
// profile stream, spends some Stardust and checks the stream reports it.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type    string `json:"type"`
	Profile *struct {
		ID       string `json:"id"`
		Stardust int64  `json:"stardust"`
	} `json:"profile"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	uid := os.Getenv("SMOKE_UID")
	if uid == "" {
		uid = "smoke-user"
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := "http://127.0.0.1:" + port + "/api/v1"

	var session struct {
		Token string `json:"token"`
	}
	if err := post(base+"/auth/session", "", map[string]string{"dev_uid": uid}, &session); err != nil {
		log.Fatalf("sign in: %v", err)
	}

	wsURL := fmt.Sprintf("ws://127.0.0.1:%s/api/v1/ws/profile?token=%s", port, session.Token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	before := readProfile(conn)
	log.Printf("connected as %s with %d stardust", uid, before)

	if err := post(base+"/planets/chat/interactions", session.Token, map[string]string{"type": "message", "content": "smoke"}, nil); err != nil {
		log.Fatalf("spend: %v", err)
	}

	after := readProfile(conn)
	if after != before-5 {
		log.Fatalf("expected %d stardust after spending 5, stream reported %d", before-5, after)
	}
	log.Printf("stream reported %d stardust", after)
	log.Println("smoke test finished")
}

// readProfile skips non-profile frames until a snapshot arrives
func readProfile(conn *websocket.Conn) int64 {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("read: %v", err)
		}
		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			log.Fatalf("bad frame %s: %v", msg, err)
		}
		switch {
		case f.Type == "error" && f.Error != nil:
			log.Fatalf("stream error: %s", f.Error.Message)
		case f.Type == "profile" && f.Profile != nil:
			return f.Profile.Stardust
		}
	}
	log.Fatal("timed out waiting for a profile frame")
	return 0
}

func post(url, token string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", url, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
