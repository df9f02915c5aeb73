package listener

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

func startSsh(t *testing.T, cm *ConnectionManager) string {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = NewSshListener(0, cm, signer).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return ln.Addr().String()
}

func dialSsh(addr, password string) (*ssh.Client, error) {
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            "op",
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
}

func TestSshListener_PasswordHandshake(t *testing.T) {
	tests := map[string]struct {
		password string
		expErr   bool
	}{
		"correct": {password: "hunter2"},
		"wrong":   {password: "hunter3", expErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			addr := startSsh(t, NewConnectionManager(&stubConsole{}, hashPassword(t, "hunter2")))

			client, err := dialSsh(addr, tt.password)
			if tt.expErr {
				if err == nil {
					client.Close()
					t.Fatal("expected handshake to fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			client.Close()
		})
	}
}

func TestSshListener_RunsConsole(t *testing.T) {
	addr := startSsh(t, NewConnectionManager(&stubConsole{}, hashPassword(t, "hunter2")))

	client, err := dialSsh(addr, "hunter2")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatalf("shell: %v", err)
	}

	if _, err := stdin.Write([]byte("list\r\nquit\r\n")); err != nil {
		t.Fatal(err)
	}

	var lines []string
	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
		if strings.Contains(sc.Text(), "Goodbye!") {
			break
		}
	}

	out := strings.Join(lines, "\n")
	if strings.Contains(out, "Password:") {
		t.Errorf("ssh session prompted for a password:\n%s", out)
	}
	if !strings.Contains(out, "ok list") {
		t.Errorf("missing command output:\n%s", out)
	}
}
