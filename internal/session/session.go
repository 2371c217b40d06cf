// Package session opens an interactive shell on a remote appliance over
// SSH and exposes it as a send/expect pair.
package session

import (
	"context"
	"io"
	"net"
	"regexp"
	"strconv"
	"time"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/sequencer"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultTerm        = "vt100"
	termWidth          = 200
	termHeight         = 50
)

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	Prompt      string
	KnownHosts  string
	DialTimeout time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Host == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "host is required")
	}
	if c.Username == "" || c.Password == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "username and password are required")
	}
	if c.Prompt == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "prompt pattern is required")
	}
	return nil
}

type Session struct {
	*interaction

	client *ssh.Client
	shell  *ssh.Session
}

var _ sequencer.Session = (*Session)(nil)

// Dial connects, authenticates and starts a shell on a pseudo terminal.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompt, err := regexp.Compile(cfg.Prompt)
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	hostKey, err := hostKeyCallback(cfg.KnownHosts)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	clientCfg := &ssh.ClientConfig{
		User: cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = cfg.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errFactory.Wrap(ErrDialFailed, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, errFactory.Wrap(ErrDialFailed, err)
	}
	client := ssh.NewClient(c, chans, reqs)

	s, err := startShell(client, prompt)
	if err != nil {
		client.Close()
		return nil, err
	}

	return s, nil
}

func startShell(client *ssh.Client, prompt *regexp.Regexp) (*Session, error) {
	errFactory := errors.New()

	shell, err := client.NewSession()
	if err != nil {
		return nil, errFactory.Wrap(ErrShellFailed, err)
	}

	stdin, err := shell.StdinPipe()
	if err != nil {
		shell.Close()
		return nil, errFactory.Wrap(ErrShellFailed, err)
	}
	stdout, err := shell.StdoutPipe()
	if err != nil {
		shell.Close()
		return nil, errFactory.Wrap(ErrShellFailed, err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := shell.RequestPty(defaultTerm, termHeight, termWidth, modes); err != nil {
		shell.Close()
		return nil, errFactory.Wrap(ErrShellFailed, err)
	}
	if err := shell.Shell(); err != nil {
		shell.Close()
		return nil, errFactory.Wrap(ErrShellFailed, err)
	}

	return &Session{
		interaction: newInteraction(stdout, stdin, prompt),
		client:      client,
		shell:       shell,
	}, nil
}

func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, errors.New().Wrap(ErrKnownHosts, err)
	}
	return cb, nil
}

// Close ends the shell and the connection.
func (s *Session) Close() error {
	var shellErr error
	if s.shell != nil {
		shellErr = s.shell.Close()
	}
	if err := s.client.Close(); err != nil {
		return errors.New().Wrap(ErrClosed, err)
	}
	if shellErr != nil && shellErr != io.EOF {
		return errors.New().Wrap(ErrClosed, shellErr)
	}
	return nil
}
