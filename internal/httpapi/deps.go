package httpapi

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/config"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/discovery"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/events"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/scheduler"
)

// Queue is the scheduler surface the API drives.
type Queue interface {
	Enqueue(jobID string) (scheduler.TaskHandle, error)
	RetryPosting(ctx context.Context, postingID string) (scheduler.TaskHandle, error)
	Stats() scheduler.Stats
	Queued() []scheduler.TaskInfo
}

type Boards interface {
	Board(id string) (domain.Board, bool)
	All() []domain.Board
}

type CostReporter interface {
	Totals() discovery.Totals
}

// SecretWriter stores operator-supplied secrets in the OS keychain.
type SecretWriter interface {
	SetBoardCredentials(boardID, username, password string) error
	DeleteBoardCredentials(boardID string) error
	SetIMAPPassword(password string) error
}

type Store interface {
	domain.Repository
	domain.JobStore
}

type Deps struct {
	Store     Store
	Queue     Queue
	Hub       *events.Hub
	Boards    Boards
	Discovery CostReporter
	Secrets   SecretWriter

	Config      config.Config
	UserCfgPath string

	// JWTSecret guards mutating endpoints when set.
	JWTSecret []byte
	Log       hclog.Logger
}
