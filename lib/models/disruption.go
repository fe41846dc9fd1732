package models

import (
	"database/sql"
	"strings"
)

type Disruption struct {
	ID          string `gorm:"primaryKey"`
	Status      string
	Line        string `gorm:"index"` // Space-joined affected line ids, first-seen order
	StartDate   string
	EndDate     string
	Severity    string
	Cause       string
	Message     sql.NullString // Title text, absent when the provider sent no title message
	Description sql.NullString
}

type Disruptions []Disruption

// Lines splits the combined line key back into individual line ids.
func (d *Disruption) Lines() []string {
	return strings.Fields(d.Line)
}

func JoinLines(lineIDs []string) string {
	return strings.Join(lineIDs, " ")
}
