// Command demo drives a running cardioai-api end to end: it registers an
// account, logs in, uploads a synthetic ECG and prints the interpretation
// report. Useful for eyeballing a fresh deployment.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vishnusainzb97/cardioai-ecg-interpreter/internal/ecg"
)

func main() {
	log.SetFlags(0)
	var (
		baseURL = flag.String("base-url", "http://localhost:8080", "API base URL")
		email   = flag.String("email", "", "Account email (default: a throwaway account)")
		passwd  = flag.String("password", "demo-password-1", "Account password")
		seconds = flag.Int("seconds", 10, "Length of the synthetic recording")
		rate    = flag.Int("rate", ecg.DefaultSampleRate, "Sample rate in Hz")
		seed    = flag.Int64("seed", 42, "Noise seed for the synthetic trace")
		ectopic = flag.Int("ectopic", 0, "Fire every nth beat early (0 = regular rhythm)")
	)
	flag.Parse()

	if *email == "" {
		*email = fmt.Sprintf("demo-%s@example.com", uuid.NewString()[:8])
	}

	c := &client{base: *baseURL, http: &http.Client{Timeout: 15 * time.Second}}

	if err := c.register(*email, *passwd); err != nil {
		log.Fatalf("register: %v", err)
	}
	if err := c.login(*email, *passwd); err != nil {
		log.Fatalf("login: %v", err)
	}
	log.Printf("logged in as %s", *email)

	var sig ecg.Signal
	if *ectopic > 0 {
		sig = ecg.SynthesizeEctopic(*seconds, *rate, *seed, *ectopic)
	} else {
		sig = ecg.Synthesize(*seconds, *rate, *seed)
	}

	id, err := c.analyze(sig)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	log.Printf("recording %s analyzed", id)

	report, err := c.get("/v1/recordings/" + id + "/report")
	if err != nil {
		log.Fatalf("report: %v", err)
	}
	fmt.Println(string(report))
}

type client struct {
	base  string
	http  *http.Client
	token string
}

func (c *client) register(email, password string) error {
	status, _, err := c.postJSON("/v1/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"name":     "Demo User",
	})
	if err != nil {
		return err
	}
	// 409 means the account exists from a previous run; login decides.
	if status != http.StatusCreated && status != http.StatusConflict {
		return fmt.Errorf("unexpected status %d", status)
	}
	return nil
}

func (c *client) login(email, password string) error {
	status, body, err := c.postJSON("/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", status, body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

func (c *client) analyze(sig ecg.Signal) (string, error) {
	status, body, err := c.postJSON("/v1/recordings/analyze", sig)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d: %s", status, body)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *client) postJSON(path string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) get(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", status, body)
	}
	return body, nil
}

func (c *client) do(req *http.Request) (int, []byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
