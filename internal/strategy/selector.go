package strategy

import (
	"context"
	"fmt"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/browser"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

// fillOrder is the order fields are typed in.
var fillOrder = []domain.FieldRole{
	domain.RoleTitle,
	domain.RoleCompany,
	domain.RoleLocation,
	domain.RoleEmail,
	domain.RoleSalary,
	domain.RoleDescription,
}

// Selector drives a board from its static selector map.
type Selector struct {
	Base
}

func NewSelector(board domain.Board, deps Deps) (Strategy, error) {
	if !board.HasStaticSelectors() {
		return nil, fmt.Errorf("board %s: selector strategy needs a submit selector", board.ID)
	}
	base, err := NewBase(board, deps)
	if err != nil {
		return nil, err
	}
	return &Selector{Base: base}, nil
}

// FillForm types every mapped field the job has a value for.
func (st *Selector) FillForm(ctx context.Context, s browser.Session, job domain.Job) error {
	filled := 0
	for _, role := range fillOrder {
		sel := st.Board.Selectors[string(role)]
		val := job.FieldValue(role)
		if sel == "" || val == "" {
			continue
		}
		if err := s.Fill(ctx, sel, val); err != nil {
			return fmt.Errorf("fill %s: %w", role, err)
		}
		filled++
	}
	if filled == 0 {
		return fmt.Errorf("board %s: no mapped field could be filled", st.Board.ID)
	}
	return nil
}

func (st *Selector) Submit(ctx context.Context, s browser.Session) error {
	return s.Click(ctx, st.Board.Selectors[string(domain.RoleSubmit)])
}
