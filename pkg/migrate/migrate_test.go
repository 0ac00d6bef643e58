package migrate

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padthaitofuhot/pve-cslb/pkg/balancer"
	"github.com/padthaitofuhot/pve-cslb/pkg/config"
	"github.com/padthaitofuhot/pve-cslb/pkg/proxmox"
)

type fakeCore struct{}

func (f *fakeCore) Version() string        { return "test" }
func (f *fakeCore) Config() *config.Config { return &config.Config{} }
func (f *fakeCore) Log() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type call struct {
	kind   string
	node   string
	vmid   int
	target string
	online bool
}

type fakeControlPlane struct {
	calls []call
	upid  string
	errs  map[int]error
}

func (f *fakeControlPlane) migrate(kind, node string, vmid int, target string, online bool) (string, error) {
	f.calls = append(f.calls, call{kind: kind, node: node, vmid: vmid, target: target, online: online})
	if err := f.errs[vmid]; err != nil {
		return "", err
	}
	return f.upid, nil
}

func (f *fakeControlPlane) MigrateQemu(node string, vmid int, target string, online bool) (string, error) {
	return f.migrate("qemu", node, vmid, target, online)
}

func (f *fakeControlPlane) MigrateLxc(node string, vmid int, target string, online bool) (string, error) {
	return f.migrate("lxc", node, vmid, target, online)
}

const testUPID = "UPID:pve-a:00001234:0005F8C2:66D0A1B3:qmigrate:100:root@pam:"

func TestExecuteQemuMigratesLive(t *testing.T) {
	pve := &fakeControlPlane{upid: testUPID}
	m := New(&fakeCore{}, pve)

	result := m.Execute(balancer.MigrationSpec{
		Source: "pve-a", Destination: "pve-b", Name: "web1", VMID: 100, Kind: balancer.KindVM,
	})

	require.NoError(t, result.Err)
	require.Len(t, pve.calls, 1)
	assert.Equal(t, "qemu", pve.calls[0].kind)
	assert.Equal(t, "pve-a", pve.calls[0].node)
	assert.Equal(t, "pve-b", pve.calls[0].target)
	assert.True(t, pve.calls[0].online)
	require.NotNil(t, result.Job)
	assert.Equal(t, testUPID, result.Job.Raw)
	assert.Equal(t, "qmigrate", result.Job.Type)
}

func TestExecuteLxcMigratesOffline(t *testing.T) {
	pve := &fakeControlPlane{upid: testUPID}
	m := New(&fakeCore{}, pve)

	result := m.Execute(balancer.MigrationSpec{
		Source: "pve-a", Destination: "pve-b", Name: "ct1", VMID: 200, Kind: balancer.KindContainer,
	})

	require.NoError(t, result.Err)
	require.Len(t, pve.calls, 1)
	assert.Equal(t, "lxc", pve.calls[0].kind)
	assert.False(t, pve.calls[0].online)
}

func TestExecuteUnknownKind(t *testing.T) {
	pve := &fakeControlPlane{upid: testUPID}
	m := New(&fakeCore{}, pve)

	result := m.Execute(balancer.MigrationSpec{VMID: 300, Kind: "docker"})

	assert.Error(t, result.Err)
	assert.Empty(t, pve.calls)
}

func TestExecuteKeepsUndecodableUPID(t *testing.T) {
	pve := &fakeControlPlane{upid: "not-a-upid"}
	m := New(&fakeCore{}, pve)

	result := m.Execute(balancer.MigrationSpec{VMID: 100, Kind: balancer.KindVM})

	require.NoError(t, result.Err)
	require.NotNil(t, result.Job)
	assert.Equal(t, "not-a-upid", result.Job.Raw)
	assert.Empty(t, result.Job.Type)
}

func TestRunContinuesAfterFailures(t *testing.T) {
	pve := &fakeControlPlane{
		upid: testUPID,
		errs: map[int]error{
			100: &proxmox.ResourceError{Status: 500, Reason: "VM is locked (backup)"},
			101: errors.New("dial tcp: connection refused"),
		},
	}
	m := New(&fakeCore{}, pve)

	specs := []balancer.MigrationSpec{
		{Source: "pve-a", Destination: "pve-b", VMID: 100, Kind: balancer.KindVM},
		{Source: "pve-a", Destination: "pve-c", VMID: 101, Kind: balancer.KindContainer},
		{Source: "pve-b", Destination: "pve-c", VMID: 102, Kind: balancer.KindVM},
	}

	results := m.Run(specs)

	require.Len(t, results, 3)
	assert.Error(t, results[0].Err)
	var rejected *proxmox.ResourceError
	assert.True(t, errors.As(results[0].Err, &rejected))
	assert.Error(t, results[1].Err)
	assert.False(t, errors.As(results[1].Err, &rejected))
	assert.NoError(t, results[2].Err)
	assert.Len(t, pve.calls, 3)
}
