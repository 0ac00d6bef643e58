package proxmox

import (
	"bytes"
	"errors"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/padthaitofuhot/pve-cslb/pkg/config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// sshBackend drives the API by running pvesh on the cluster node over SSH.
type sshBackend struct {
	client *ssh.Client
}

func newSSHBackend(conf *config.Config) (backend, error) {
	auth, err := sshAuth(conf.ProxmoxSSHKeyFile)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            sshUser(conf.ProxmoxUser),
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(conf.ProxmoxNode, "22"), sshConfig)
	if err != nil {
		return nil, err
	}
	return &sshBackend{client: client}, nil
}

func sshAuth(keyFile string) ([]ssh.AuthMethod, error) {
	if keyFile != "" {
		if key, err := os.ReadFile(keyFile); err == nil {
			signer, err := ssh.ParsePrivateKey(key)
			if err != nil {
				return nil, err
			}
			return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
		}
	}

	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, errors.New("no readable SSH key file and no SSH agent available")
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, err
	}
	agentClient := agent.NewClient(conn)
	return []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)}, nil
}

// sshUser strips the PVE realm: the API user root@pam logs in over SSH as
// plain root.
func sshUser(user string) string {
	if i := strings.IndexByte(user, '@'); i > 0 {
		return user[:i]
	}
	return user
}

func (b *sshBackend) run(args []string) ([]byte, error) {
	session, err := b.client.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if err := session.Run(strings.Join(args, " ")); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ResourceError{
				Status: exitErr.ExitStatus(),
				Reason: strings.TrimSpace(stderr.String()),
			}
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

func (b *sshBackend) get(path string) ([]byte, error) {
	return b.run(pveshArgs("get", path, nil))
}

func (b *sshBackend) post(path string, form url.Values) ([]byte, error) {
	return b.run(pveshArgs("create", path, form))
}
