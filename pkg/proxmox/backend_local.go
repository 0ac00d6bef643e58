package proxmox

import (
	"net/url"
	"sort"
	"strings"

	"github.com/go-cmd/cmd"
)

// localBackend runs pvesh directly; it only works when cslb itself runs on
// a cluster node.
type localBackend struct{}

func newLocalBackend() backend {
	return &localBackend{}
}

func (b *localBackend) run(args []string) ([]byte, error) {
	c := cmd.NewCmd(args[0], args[1:]...)
	status := <-c.Start()
	if status.Error != nil {
		return nil, status.Error
	}
	if status.Exit != 0 {
		return nil, &ResourceError{
			Status: status.Exit,
			Reason: strings.TrimSpace(strings.Join(status.Stderr, "\n")),
		}
	}
	return []byte(strings.Join(status.Stdout, "\n")), nil
}

func (b *localBackend) get(path string) ([]byte, error) {
	return b.run(pveshArgs("get", path, nil))
}

func (b *localBackend) post(path string, form url.Values) ([]byte, error) {
	return b.run(pveshArgs("create", path, form))
}

func pveshArgs(verb string, path string, form url.Values) []string {
	args := []string{"pvesh", verb, path}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--"+k, form.Get(k))
	}
	return append(args, "--output-format", "json")
}
