// Package main runs a demo WebSocket client that follows one supply request
// through approval, assignment and delivery.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func post(base, path, role, body string) (*http.Response, error) {
	req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", role)
	return http.DefaultClient.Do(req)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Create a request for mobile unit 10, air priority
	resp, err := post(base, "/v1/requests", "requester", `{"destination":10,"priority":1,"item":"medical kit","quantity":1}`)
	if err != nil {
		log.Fatal(err)
	}
	var created struct {
		ID string `json:"id"`
	}
	err = json.NewDecoder(resp.Body).Decode(&created)
	_ = resp.Body.Close()
	if err != nil || created.ID == "" {
		log.Fatalf("create request failed: %v", err)
	}
	log.Printf("Request ID: %s", created.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/requests/" + created.ID + "/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "manager")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			b, _ := json.Marshal(m.Data)
			log.Printf("WS <- %s: %s", m.Type, b)
		}
	}()

	// Drive the request through its lifecycle
	steps := []struct{ path, role string }{
		{"/plan", "manager"},
		{"/approve", "manager"},
		{"/assign", "driver"},
		{"/deliver", "driver"},
	}
	for _, st := range steps {
		time.Sleep(300 * time.Millisecond)
		resp, err := post(base, "/v1/requests/"+created.ID+st.path, st.role, "")
		if err != nil {
			log.Fatal(err)
		}
		_ = resp.Body.Close()
		log.Printf("POST %s -> %d", st.path, resp.StatusCode)
	}

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
