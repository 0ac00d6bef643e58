package proxmox

import (
	"encoding/json"
	"fmt"
	"net/url"

	cslb "github.com/padthaitofuhot/pve-cslb/pkg/cslb_const"
)

func New(c cslb.CSLB) (*Client, error) {
	p := &Client{
		cslb: c,
	}

	conf := c.Config()
	var err error
	switch conf.ProxmoxScheme {
	case "https":
		p.backend, err = newHTTPSBackend(conf)
	case "ssh":
		p.backend, err = newSSHBackend(conf)
	case "local":
		p.backend = newLocalBackend()
	default:
		return nil, fmt.Errorf("unknown proxmox scheme %q", conf.ProxmoxScheme)
	}
	if err != nil {
		return nil, err
	}

	p.Log().Infof("Using Proxmox API via %s://%s", conf.ProxmoxScheme, conf.ProxmoxNode)
	return p, nil
}

func (p *Client) Nodes() ([]Node, error) {
	var nodes []Node
	if err := p.getJSON("/nodes", &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (p *Client) NodeStatus(node string) (*NodeStatus, error) {
	status := &NodeStatus{}
	if err := p.getJSON("/nodes/"+node+"/status", status); err != nil {
		return nil, err
	}
	return status, nil
}

func (p *Client) Qemu(node string) ([]Workload, error) {
	var workloads []Workload
	if err := p.getJSON("/nodes/"+node+"/qemu", &workloads); err != nil {
		return nil, err
	}
	return workloads, nil
}

func (p *Client) Lxc(node string) ([]Workload, error) {
	var workloads []Workload
	if err := p.getJSON("/nodes/"+node+"/lxc", &workloads); err != nil {
		return nil, err
	}
	return workloads, nil
}

// MigrateQemu submits a VM migration job and returns its UPID. The call
// returns as soon as the control plane accepts the job.
func (p *Client) MigrateQemu(node string, vmid int, target string, online bool) (string, error) {
	return p.migrate(fmt.Sprintf("/nodes/%s/qemu/%d/migrate", node, vmid), target, online)
}

// MigrateLxc submits a container migration job and returns its UPID.
func (p *Client) MigrateLxc(node string, vmid int, target string, online bool) (string, error) {
	return p.migrate(fmt.Sprintf("/nodes/%s/lxc/%d/migrate", node, vmid), target, online)
}

func (p *Client) migrate(path string, target string, online bool) (string, error) {
	form := url.Values{}
	form.Set("target", target)
	form.Set("online", boolParam(online))

	body, err := p.backend.post(path, form)
	if err != nil {
		return "", err
	}
	var upid string
	if err := json.Unmarshal(body, &upid); err != nil {
		return "", fmt.Errorf("unexpected migrate response %q: %w", body, err)
	}
	return upid, nil
}

// TaskLog fetches the log lines of a task by UPID.
func (p *Client) TaskLog(node string, upid string) ([]TaskLogLine, error) {
	var lines []TaskLogLine
	path := fmt.Sprintf("/nodes/%s/tasks/%s/log", node, url.PathEscape(upid))
	if err := p.getJSON(path, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// NetworkUsage sums inbound and outbound traffic over the node's netstat
// entries.
func (p *Client) NetworkUsage(node string) (int64, int64, error) {
	var entries []NetstatEntry
	if err := p.getJSON("/nodes/"+node+"/netstat", &entries); err != nil {
		return 0, 0, err
	}
	var in, out int64
	for _, e := range entries {
		in += int64(e.In)
		out += int64(e.Out)
	}
	return in, out, nil
}

func (p *Client) getJSON(path string, out interface{}) error {
	body, err := p.backend.get(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("cannot parse response for %s: %w", path, err)
	}
	return nil
}
