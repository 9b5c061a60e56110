package management

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	connectTimeout   = 1 * time.Second
	readWriteTimeout = 8 * time.Second
	authTimeout      = 3 * time.Second
)

// Client dials the daemon's unix socket and runs one command per call.
type Client struct {
	socketPath string
	password   string
}

func NewClient(app string, password string) *Client {
	return &Client{
		socketPath: GetDefaultSocketPath(app),
		password:   password,
	}
}

// IsServerStarted reports whether the daemon answers a ping.
func (c *Client) IsServerStarted() bool {
	res, err := c.SendCommand("ping")
	if err != nil {
		return false
	}
	return res == pongString
}

// SendCommand runs a single command line and returns the response body.
func (c *Client) SendCommand(command string) (string, error) {
	if command == "" {
		command = "help"
	}

	conn, err := net.DialTimeout("unix", c.socketPath, connectTimeout)
	if err != nil {
		return "", fmt.Errorf("error connecting to daemon socket %s: %v\nIs the daemon running?", c.socketPath, err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	if c.password != "" {
		if err := conn.SetWriteDeadline(time.Now().Add(authTimeout)); err != nil {
			return "", fmt.Errorf("error setting write deadline for auth: %v", err)
		}
		if _, err = fmt.Fprintf(conn, "%s\n", c.password); err != nil {
			return "", fmt.Errorf("error sending password: %v", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
			return "", fmt.Errorf("error setting read deadline for auth: %v", err)
		}
		response, err := recvMessage(reader)
		if err != nil {
			return "", fmt.Errorf("error reading auth response: %v", err)
		}
		if strings.Contains(response, authFailed) {
			return "", fmt.Errorf("auth failure: %s", strings.TrimSpace(response))
		}
	}

	if err := conn.SetDeadline(time.Now().Add(readWriteTimeout)); err != nil {
		return "", fmt.Errorf("error setting read/write deadline: %v", err)
	}

	if _, err = fmt.Fprintf(conn, "%s\n", command); err != nil {
		return "", fmt.Errorf("error sending command: %v", err)
	}

	response, err := recvMessage(reader)
	if err != nil {
		return "", fmt.Errorf("error reading response: %v", err)
	}
	return strings.TrimSpace(response), nil
}
