package cslb

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padthaitofuhot/pve-cslb/pkg/config"
	"github.com/padthaitofuhot/pve-cslb/pkg/proxmox"
)

const testUPID = "UPID:pve-a:000C9B2E:0478D3A1:66D0A1B3:qmigrate:100:root@pam:"

const gib = int64(1) << 30

// pveCluster fakes an imbalanced three node cluster: pve-a is heavily
// loaded and carries the only running workload, pve-b and pve-c are idle.
type pveCluster struct {
	t          *testing.T
	migrations []string
}

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func (c *pveCluster) nodeStatus(load float64, memUsed int64) map[string]interface{} {
	return map[string]interface{}{
		"cpuinfo": map[string]interface{}{"mhz": "2000.000", "cores": 4},
		"loadavg": []string{
			strconv.FormatFloat(load, 'f', 2, 64),
			strconv.FormatFloat(load, 'f', 2, 64),
			strconv.FormatFloat(load, 'f', 2, 64),
		},
		"memory": map[string]int64{
			"total": 16 * gib,
			"used":  memUsed,
			"free":  16*gib - memUsed,
		},
		"ksm": map[string]int64{"shared": 0},
	}
}

func (c *pveCluster) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api2/json/access/ticket", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]string{
			"ticket":              "TESTTICKET",
			"CSRFPreventionToken": "TESTCSRF",
		})
	})
	mux.HandleFunc("/api2/json/nodes", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []map[string]string{
			{"node": "pve-a", "status": "online"},
			{"node": "pve-b", "status": "online"},
			{"node": "pve-c", "status": "online"},
		})
	})
	mux.HandleFunc("/api2/json/nodes/pve-a/status", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, c.nodeStatus(3.0, 12*gib))
	})
	mux.HandleFunc("/api2/json/nodes/pve-b/status", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, c.nodeStatus(0.5, 2*gib))
	})
	mux.HandleFunc("/api2/json/nodes/pve-c/status", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, c.nodeStatus(0.5, 2*gib))
	})
	mux.HandleFunc("/api2/json/nodes/pve-a/qemu", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []map[string]interface{}{{
			"vmid": 100, "name": "web1", "status": "running",
			"cpus": 2, "cpu": 0.5, "mem": 1 * gib, "maxmem": 4 * gib,
		}})
	})
	for _, path := range []string{
		"/api2/json/nodes/pve-a/lxc",
		"/api2/json/nodes/pve-b/qemu",
		"/api2/json/nodes/pve-b/lxc",
		"/api2/json/nodes/pve-c/qemu",
		"/api2/json/nodes/pve-c/lxc",
	} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			writeData(w, []interface{}{})
		})
	}
	mux.HandleFunc("/api2/json/nodes/pve-a/qemu/100/migrate", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(c.t, r.ParseForm())
		c.migrations = append(c.migrations, r.PostForm.Get("target"))
		assert.Equal(c.t, "1", r.PostForm.Get("online"))
		writeData(w, testUPID)
	})
	return mux
}

func testCore(t *testing.T, srv *httptest.Server, dryRun bool) *CSLB {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	conf := &config.Config{
		DryRun:             dryRun,
		ProxmoxScheme:      "https",
		ProxmoxNode:        host,
		ProxmoxPort:        port,
		ProxmoxUser:        "root@pam",
		ProxmoxPass:        "hunter2",
		ProxmoxNoVerifySSL: true,
		WeightParameters: config.WeightParameters{
			PercentCPU:    0.4,
			PercentMem:    0.6,
			Tolerance:     0.2,
			MaxMigrations: 5,
		},
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	o := New("test", logrus.NewEntry(logger), conf)

	o.Proxmox, err = proxmox.New(o)
	require.NoError(t, err)
	return o
}

func TestRunMigratesImbalancedCluster(t *testing.T) {
	cluster := &pveCluster{t: t}
	srv := httptest.NewTLSServer(cluster.handler())
	defer srv.Close()

	o := testCore(t, srv, false)

	assert.Equal(t, 0, o.Run())
	// the lightest destination ties break in enumeration order
	assert.Equal(t, []string{"pve-b"}, cluster.migrations)
}

func TestRunDryRunSubmitsNothing(t *testing.T) {
	cluster := &pveCluster{t: t}
	srv := httptest.NewTLSServer(cluster.handler())
	defer srv.Close()

	o := testCore(t, srv, true)

	assert.Equal(t, 0, o.Run())
	assert.Empty(t, cluster.migrations)
}

func TestRunAbortsOnTelemetryFailure(t *testing.T) {
	cluster := &pveCluster{t: t}
	srv := httptest.NewTLSServer(cluster.handler())

	o := testCore(t, srv, false)
	srv.Close()

	assert.Equal(t, 1, o.Run())
	assert.Empty(t, cluster.migrations)
}
