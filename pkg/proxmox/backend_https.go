package proxmox

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/padthaitofuhot/pve-cslb/pkg/config"
	"github.com/patrickmn/go-cache"
)

// PVE auth tickets stay valid for two hours; re-authenticate once per TTL
// instead of once per request.
const ticketTTL = time.Hour

type httpsBackend struct {
	base string
	user string
	pass string

	client  *http.Client
	tickets *cache.Cache
}

type ticket struct {
	Ticket string `json:"ticket"`
	CSRF   string `json:"CSRFPreventionToken"`
}

func newHTTPSBackend(conf *config.Config) (backend, error) {
	transport := &http.Transport{}
	if conf.ProxmoxNoVerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	b := &httpsBackend{
		base: fmt.Sprintf("https://%s:%d/api2/json", conf.ProxmoxNode, conf.ProxmoxPort),
		user: conf.ProxmoxUser,
		pass: conf.ProxmoxPass,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		tickets: cache.New(ticketTTL, 2*ticketTTL),
	}
	return b, nil
}

func (b *httpsBackend) login() (*ticket, error) {
	if cached, ok := b.tickets.Get("ticket"); ok {
		return cached.(*ticket), nil
	}

	form := url.Values{}
	form.Set("username", b.user)
	form.Set("password", b.pass)
	resp, err := b.client.PostForm(b.base+"/access/ticket", form)
	if err != nil {
		return nil, err
	}
	body, err := readData(resp)
	if err != nil {
		return nil, err
	}
	t := &ticket{}
	if err := json.Unmarshal(body, t); err != nil {
		return nil, fmt.Errorf("cannot parse auth ticket: %w", err)
	}
	b.tickets.Set("ticket", t, cache.DefaultExpiration)
	return t, nil
}

func (b *httpsBackend) get(path string) ([]byte, error) {
	t, err := b.login()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.AddCookie(&http.Cookie{Name: "PVEAuthCookie", Value: t.Ticket})

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	return readData(resp)
}

func (b *httpsBackend) post(path string, form url.Values) ([]byte, error) {
	t, err := b.login()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("CSRFPreventionToken", t.CSRF)
	req.AddCookie(&http.Cookie{Name: "PVEAuthCookie", Value: t.Ticket})

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	return readData(resp)
}

// readData drains the response, surfaces API-level rejections as
// *ResourceError and strips the {"data": ...} envelope.
func readData(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := strings.TrimSpace(string(body))
		if reason == "" {
			reason = resp.Status
		}
		return nil, &ResourceError{Status: resp.StatusCode, Reason: reason}
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected API response: %w", err)
	}
	return envelope.Data, nil
}
