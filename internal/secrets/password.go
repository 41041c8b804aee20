package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/config"
)

const (
	// "Service" groups the engine's secrets in the OS keychain.
	KeyringService = "postjob"

	defaultBoardAccount = "postjob:board:default"
)

var ErrNoCredentials = errors.New("board credentials not found (set them in keychain or via env)")

// Credentials are what a credential-login strategy types into a board.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func BoardKeyringAccount(boardID string) string {
	return "postjob:board:" + boardID
}

// Store resolves board credentials: board keychain entry, then the default
// keychain entry, then the configured username plus password env var.
type Store struct {
	username    string
	passwordEnv string
	imapAccount string
}

func NewStore(cfg config.Config) *Store {
	return &Store{
		username:    cfg.Credentials.Username,
		passwordEnv: cfg.Credentials.PasswordEnv,
		imapAccount: IMAPKeyringAccount(cfg),
	}
}

// SetBoardCredentials stores a pair for boardID, falling back to the
// configured username when none is given.
func (s *Store) SetBoardCredentials(boardID, username, password string) error {
	if strings.TrimSpace(username) == "" {
		username = s.username
	}
	return SetBoardCredentials(boardID, Credentials{Username: username, Password: password})
}

func (s *Store) DeleteBoardCredentials(boardID string) error {
	return DeleteBoardCredentials(boardID)
}

func (s *Store) SetIMAPPassword(password string) error {
	return SetIMAPPassword(s.imapAccount, password)
}

func (s *Store) IMAPPassword() (string, error) {
	return GetIMAPPassword(s.imapAccount)
}

func (s *Store) BoardCredentials(boardID string) (Credentials, error) {
	for _, account := range []string{BoardKeyringAccount(boardID), defaultBoardAccount} {
		raw, err := keyring.Get(KeyringService, account)
		if err != nil || strings.TrimSpace(raw) == "" {
			continue
		}
		if c, ok := decode(raw, s.username); ok {
			return c, nil
		}
	}

	if s.passwordEnv != "" {
		if pw := os.Getenv(s.passwordEnv); pw != "" && s.username != "" {
			return Credentials{Username: s.username, Password: pw}, nil
		}
	}
	return Credentials{}, fmt.Errorf("board %s: %w", boardID, ErrNoCredentials)
}

// decode accepts a JSON credential pair or a bare password.
func decode(raw, defaultUser string) (Credentials, bool) {
	var c Credentials
	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return Credentials{}, false
		}
	} else {
		c.Password = raw
	}
	if c.Username == "" {
		c.Username = defaultUser
	}
	return c, c.Username != "" && c.Password != ""
}

// SetBoardCredentials stores c for boardID; an empty boardID sets the default.
func SetBoardCredentials(boardID string, c Credentials) error {
	if strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.Password) == "" {
		return errors.New("username and password are required")
	}
	account := defaultBoardAccount
	if boardID != "" {
		account = BoardKeyringAccount(boardID)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return keyring.Set(KeyringService, account, string(b))
}

func DeleteBoardCredentials(boardID string) error {
	if strings.TrimSpace(boardID) == "" {
		return errors.New("board id is empty")
	}
	return keyring.Delete(KeyringService, BoardKeyringAccount(boardID))
}

func GetIMAPPassword(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		pw, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if pw := os.Getenv("POSTJOB_IMAP_PASSWORD"); pw != "" {
		return pw, nil
	}
	return "", errors.New("IMAP password not found (set it in keychain or via env)")
}

func SetIMAPPassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func IMAPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf(
		"postjob:imap:%s@%s",
		cfg.Email.Username,
		cfg.Email.IMAPHost,
	)
}
