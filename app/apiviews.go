package app

import (
	"database/sql"

	"github.com/fiffu/linewatch/lib"
	"github.com/fiffu/linewatch/lib/models"
)

type DisruptionView struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Line        string     `json:"line"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	Severity    string     `json:"severity"`
	Cause       string     `json:"cause"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Lines       []LineView `json:"lines"`
}

type LineView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Mode        string `json:"mode"`
	Color       string `json:"color"`
	TextColor   string `json:"text_color"`
}

func (view LineView) From(entity models.Line) LineView {
	return LineView{
		ID:          entity.ID,
		Name:        entity.Name,
		Description: entity.Description,
		Mode:        entity.Mode,
		Color:       entity.Color,
		TextColor:   entity.TextColor,
	}
}

func (view DisruptionView) From(entity lib.DisruptionDetail) DisruptionView {
	return DisruptionView{
		ID:          entity.ID,
		Status:      entity.Status,
		Line:        entity.Line,
		StartDate:   entity.StartDate,
		EndDate:     entity.EndDate,
		Severity:    entity.Severity,
		Cause:       entity.Cause,
		Title:       nullable(entity.Message),
		Description: nullable(entity.Description),
		Lines:       FromMany[models.Line, LineView](entity.AffectedLines),
	}
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}

func nullable(s sql.NullString) *string {
	if s.Valid {
		return &s.String
	}
	return nil
}
