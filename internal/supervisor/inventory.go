package supervisor

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/jkroepke/sshlog-exporter/internal/config"
	"github.com/jkroepke/sshlog-exporter/internal/errkind"
	"go.yaml.in/yaml/v4"
)

// targetSpec is one resolved (host, file) pair a Scraper should be
// running for.
type targetSpec struct {
	id          string
	environment string
	host        string
	conn        config.SSHConnection
}

// targetsFromSSH expands an SSH config subtree into the set of targets it
// describes, one per (environment, host) pair.
func targetsFromSSH(ssh config.SSH) map[string]targetSpec {
	out := make(map[string]targetSpec)

	for name := range ssh.Environments {
		conn, hosts, ok := ssh.Effective(name)
		if !ok {
			continue
		}

		for _, host := range hosts {
			t := targetSpec{
				environment: name,
				host:        normalizeHost(host),
				conn:        conn,
			}
			t.id = fmt.Sprintf("ssh://%s%s", t.host, conn.File)
			out[t.id] = t
		}
	}

	return out
}

func normalizeHost(host string) string {
	for i := len(host) - 1; i >= 0; i-- {
		switch host[i] {
		case ':':
			return host
		case ']':
			return host + ":22"
		}
	}

	return host + ":22"
}

// runInventoryScript executes the configured script and parses its
// stdout as an SSH config subtree. A non-zero exit or unparseable output
// is wrapped as a supervisor_inventory_error; the caller is expected to
// retain the previous target set on error.
func runInventoryScript(ctx context.Context, script string) (config.SSH, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)

	output, err := cmd.Output()
	if err != nil {
		return config.SSH{}, errkind.New(errkind.SupervisorInventory, fmt.Errorf("running inventory script: %w", err))
	}

	var ssh config.SSH

	if err := yaml.Unmarshal(output, &ssh); err != nil {
		return config.SSH{}, errkind.New(errkind.SupervisorInventory, fmt.Errorf("parsing inventory script output: %w", err))
	}

	return ssh, nil
}
