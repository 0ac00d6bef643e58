package proxmox

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

func (p *Client) Log() *logrus.Entry {
	log := p.cslb.Log().WithField("context", "proxmox")
	return log
}

// ParseUPID decodes a task identifier of the form
// UPID:node:pid:pstart:starttime:type:id:user@realm: with the pid, pstart
// and starttime fields in hex.
func ParseUPID(s string) (*UPID, error) {
	segments := strings.Split(s, ":")
	if len(segments) != 9 || segments[0] != "UPID" {
		return nil, fmt.Errorf("invalid UPID %q", s)
	}
	pid, err := strconv.ParseInt(segments[2], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid UPID pid in %q: %w", s, err)
	}
	pstart, err := strconv.ParseInt(segments[3], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid UPID pstart in %q: %w", s, err)
	}
	starttime, err := strconv.ParseInt(segments[4], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid UPID starttime in %q: %w", s, err)
	}
	return &UPID{
		Raw:       s,
		Node:      segments[1],
		PID:       int(pid),
		PStart:    int(pstart),
		StartTime: starttime,
		Type:      segments[5],
		ID:        segments[6],
		User:      segments[7],
	}, nil
}

// Float tolerates numerics the API quotes as strings (cpuinfo.mhz, loadavg).
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Int tolerates integers the API quotes as strings (lxc vmid).
type Int int64

func (i *Int) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*i = Int(v)
	return nil
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
