package db

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/nhath/ezquery/internal/core"
)

const defaultSSHPort = 22

// SSHTunnel represents an active SSH connection that can dial
type SSHTunnel struct {
	client *ssh.Client
}

// expandHome resolves a leading ~/ against the user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// authMethods collects key file and agent authentication
func authMethods(cfg *core.Tunnel, logger *slog.Logger) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	// Explicit key first
	if cfg.KeyPath != "" {
		keyPath := expandHome(cfg.KeyPath)
		key, err := os.ReadFile(keyPath)
		if err != nil {
			logger.Warn("ssh: failed to read private key", "path", keyPath, "error", err)
		} else if signer, err := ssh.ParsePrivateKey(key); err != nil {
			logger.Warn("ssh: failed to parse private key", "path", keyPath, "error", err)
		} else {
			logger.Debug("ssh: loaded private key", "type", signer.PublicKey().Type())
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if socket := os.Getenv("SSH_AUTH_SOCK"); socket != "" {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			agentClient := agent.NewClient(conn)
			methods = append(methods, ssh.PublicKeysCallback(agentClient.Signers))
			logger.Debug("ssh: added agent auth")
		} else {
			logger.Warn("ssh: failed to dial SSH_AUTH_SOCK", "error", err)
		}
	}
	return methods
}

// NewSSHTunnel establishes an SSH connection
func NewSSHTunnel(ctx context.Context, cfg *core.Tunnel, logger *slog.Logger) (*SSHTunnel, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, fmt.Errorf("SSH host is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	methods := authMethods(cfg, logger)
	if len(methods) == 0 {
		return nil, fmt.Errorf("no valid SSH authentication methods found")
	}

	cliConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
		HostKeyAlgorithms: []string{
			ssh.KeyAlgoED25519,
			ssh.KeyAlgoRSASHA512,
			ssh.KeyAlgoRSASHA256,
			ssh.KeyAlgoRSA,
			ssh.KeyAlgoECDSA256,
			ssh.KeyAlgoECDSA384,
			ssh.KeyAlgoECDSA521,
		},
	}

	port := cfg.Port
	if port == 0 {
		port = defaultSSHPort
	}
	address := net.JoinHostPort(cfg.Host, fmt.Sprint(port))
	logger.Debug("ssh: dialing", "address", address, "user", cfg.User)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SSH: %w", err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, address, cliConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to dial SSH: %w", err)
	}
	logger.Debug("ssh: connected", "address", address)

	return &SSHTunnel{client: ssh.NewClient(c, chans, reqs)}, nil
}

// DialContext connects to a remote address through the tunnel with context support
func (t *SSHTunnel) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		conn, err := t.client.Dial(network, addr)
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-ch:
		return res.conn, res.err
	}
}

// Close closes the SSH connection
func (t *SSHTunnel) Close() error {
	return t.client.Close()
}
