package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

// BoardsFile is the on-disk shape of the board catalog.
type BoardsFile struct {
	Boards []domain.Board `toml:"board"`
}

// Catalog is the read-only set of boards, keyed by id.
type Catalog struct {
	boards map[string]domain.Board
}

// LoadBoards decodes a TOML catalog and validates every entry.
func LoadBoards(path string) (*Catalog, error) {
	var f BoardsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode boards %s: %w", path, err)
	}
	return NewCatalog(f.Boards)
}

// NewCatalog validates boards and indexes them.
func NewCatalog(boards []domain.Board) (*Catalog, error) {
	c := &Catalog{boards: make(map[string]domain.Board, len(boards))}
	var errs []string
	for i, b := range boards {
		b.ID = strings.TrimSpace(b.ID)
		if b.ID == "" {
			errs = append(errs, fmt.Sprintf("board[%d].id is required", i))
			continue
		}
		if _, dup := c.boards[b.ID]; dup {
			errs = append(errs, fmt.Sprintf("board %q is defined twice", b.ID))
			continue
		}
		if b.Name == "" {
			b.Name = b.ID
		}
		if u, err := url.Parse(b.PostURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("board %q: post_url must be absolute", b.ID))
		}
		if b.Login.Mode == "" {
			b.Login.Mode = domain.LoginNone
		}
		switch b.Login.Mode {
		case domain.LoginNone:
		case domain.LoginCredentials:
			if b.Login.UsernameSelector == "" || b.Login.PasswordSelector == "" || b.Login.SubmitSelector == "" {
				errs = append(errs, fmt.Sprintf("board %q: credential login needs username, password and submit selectors", b.ID))
			}
		case domain.LoginSession:
			if b.Login.LoggedInSelector == "" {
				errs = append(errs, fmt.Sprintf("board %q: session login needs logged_in_selector", b.ID))
			}
		default:
			errs = append(errs, fmt.Sprintf("board %q: unknown login mode %q", b.ID, b.Login.Mode))
		}
		c.boards[b.ID] = b
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("boards validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return c, nil
}

// Board returns the board with id.
func (c *Catalog) Board(id string) (domain.Board, bool) {
	b, ok := c.boards[id]
	return b, ok
}

// All returns every board sorted by id.
func (c *Catalog) All() []domain.Board {
	out := make([]domain.Board, 0, len(c.boards))
	for _, b := range c.boards {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Enabled returns the enabled boards sorted by id.
func (c *Catalog) Enabled() []domain.Board {
	var out []domain.Board
	for _, b := range c.All() {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}
