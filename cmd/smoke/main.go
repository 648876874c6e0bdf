// Command smoke probes a deployed cardioai-api: health, admin login, one
// analysis round-trip and an audit-log read. Exits non-zero on the first
// failed check, so it slots into a deploy pipeline.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ecg"
)

func main() {
	log.SetFlags(0)

	base := os.Getenv("CARDIOAI_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("CARDIOAI_ADMIN_EMAIL")
	password := os.Getenv("CARDIOAI_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("smoke: CARDIOAI_ADMIN_EMAIL and CARDIOAI_ADMIN_PASSWORD are required")
	}

	hc := &http.Client{Timeout: 10 * time.Second}

	check("health", func() error {
		resp, err := hc.Get(base + "/healthz")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})

	var token string
	check("login", func() error {
		body, _ := json.Marshal(map[string]string{"email": email, "password": password})
		resp, err := hc.Post(base+"/v1/auth/login", "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		var out struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return err
		}
		if out.Token == "" {
			return fmt.Errorf("empty token")
		}
		token = out.Token
		return nil
	})

	check("analyze", func() error {
		sig := ecg.Synthesize(10, ecg.DefaultSampleRate, time.Now().UnixNano())
		body, _ := json.Marshal(sig)
		req, err := http.NewRequest(http.MethodPost, base+"/v1/recordings/analyze", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			raw, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("status %d: %s", resp.StatusCode, raw)
		}
		return nil
	})

	check("audit", func() error {
		req, err := http.NewRequest(http.MethodGet, base+"/v1/audit?limit=5", nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		var out struct {
			Total int `json:"total"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return err
		}
		if out.Total == 0 {
			return fmt.Errorf("no audit entries recorded")
		}
		return nil
	})

	log.Println("smoke: all checks passed")
}

func check(name string, fn func() error) {
	if err := fn(); err != nil {
		log.Fatalf("smoke: %s: %v", name, err)
	}
	log.Printf("smoke: %s ok", name)
}
