package listener

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/admin"
	"golang.org/x/crypto/bcrypt"
)

const (
	consolePrompt = "revival> "
	passwordTries = 3
)

var ErrAuthFailed = errors.New("authentication failed")

// Executor runs one console line.
type Executor interface {
	Exec(ctx context.Context, caller uuid.UUID, line string) (string, error)
}

// ConnectionManager runs an operator console on each accepted connection.
type ConnectionManager struct {
	console      Executor
	passwordHash []byte
}

// NewConnectionManager gates every connection behind passwordHash, a bcrypt
// hash. An empty hash disables the prompt.
func NewConnectionManager(console Executor, passwordHash string) *ConnectionManager {
	return &ConnectionManager{
		console:      console,
		passwordHash: []byte(passwordHash),
	}
}

// AcceptConnection prompts for the password before running the console.
func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn io.ReadWriter) {
	if err := m.RunSession(ctx, conn); err != nil {
		slog.WarnContext(ctx, "console session", "error", err)
	}
}

// AcceptAuthenticated runs the console on a connection whose transport has
// already checked the password.
func (m *ConnectionManager) AcceptAuthenticated(ctx context.Context, conn io.ReadWriter) {
	if err := m.serve(ctx, conn, bufio.NewReader(conn)); err != nil {
		slog.WarnContext(ctx, "console session", "error", err)
	}
}

// RequiresPassword reports whether a password hash is configured.
func (m *ConnectionManager) RequiresPassword() bool {
	return len(m.passwordHash) > 0
}

// CheckPassword compares password against the configured hash.
func (m *ConnectionManager) CheckPassword(password []byte) bool {
	return !m.RequiresPassword() || bcrypt.CompareHashAndPassword(m.passwordHash, password) == nil
}

// RunSession authenticates the operator and then executes lines until the
// connection closes, the operator quits, or ctx is cancelled.
func (m *ConnectionManager) RunSession(ctx context.Context, conn io.ReadWriter) error {
	br := bufio.NewReader(conn)
	if err := m.authenticate(conn, br); err != nil {
		return err
	}
	return m.serve(ctx, conn, br)
}

func (m *ConnectionManager) serve(ctx context.Context, conn io.ReadWriter, br *bufio.Reader) error {
	slog.InfoContext(ctx, "console session started")

	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-done:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	if err := writeLine(conn, "Type 'help' for commands."); err != nil {
		return err
	}
	if err := prompt(conn); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}

			line = strings.TrimSpace(line)
			switch strings.ToLower(line) {
			case "":
			case "quit", "exit":
				return writeLine(conn, "Goodbye!")
			default:
				if err := m.exec(ctx, conn, line); err != nil {
					return err
				}
			}

			if err := prompt(conn); err != nil {
				return err
			}
		}
	}
}

func (m *ConnectionManager) exec(ctx context.Context, conn io.Writer, line string) error {
	out, err := m.console.Exec(ctx, uuid.Nil, line)
	if err != nil {
		var userErr *admin.UserError
		if !errors.As(err, &userErr) {
			slog.ErrorContext(ctx, "console command failed", "line", line, "error", err)
		}
		return writeLine(conn, "Error: "+err.Error())
	}
	return writeLine(conn, out)
}

func (m *ConnectionManager) authenticate(conn io.Writer, br *bufio.Reader) error {
	if !m.RequiresPassword() {
		return nil
	}

	for range passwordTries {
		if _, err := io.WriteString(conn, "Password: "); err != nil {
			return err
		}
		input, err := br.ReadString('\n')
		if err != nil && input == "" {
			return err
		}
		if m.CheckPassword([]byte(strings.TrimRight(input, "\r\n"))) {
			return nil
		}
		if err := writeLine(conn, "Incorrect password."); err != nil {
			return err
		}
	}

	_ = writeLine(conn, "Too many tries.")
	return fmt.Errorf("%w after %d tries", ErrAuthFailed, passwordTries)
}

func prompt(w io.Writer) error {
	_, err := io.WriteString(w, consolePrompt)
	return err
}

func writeLine(w io.Writer, msg string) error {
	_, err := io.WriteString(w, msg+"\n")
	return err
}
