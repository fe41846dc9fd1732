package ingest

import (
	"database/sql"
	"fmt"
	"slices"

	"github.com/fiffu/linewatch/lib/models"
	"github.com/fiffu/linewatch/lib/navitia"
)

const (
	titleChannel       = "title"
	descriptionChannel = "web"
)

// Normalize turns one raw provider record into a Disruption. It never panics
// on partial records: anything it cannot build is reported as ErrMalformedRecord.
func Normalize(raw *navitia.RawDisruption) (*models.Disruption, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}

	periods := raw.ApplicationPeriods
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: disruption %s has no application period", ErrMalformedRecord, raw.ID)
	}

	title, err := messageText(raw.Messages, titleChannel)
	if err != nil {
		return nil, fmt.Errorf("%w: disruption %s title: %w", ErrMalformedRecord, raw.ID, err)
	}
	description, err := messageText(raw.Messages, descriptionChannel)
	if err != nil {
		return nil, fmt.Errorf("%w: disruption %s description: %w", ErrMalformedRecord, raw.ID, err)
	}

	return &models.Disruption{
		ID:          raw.ID,
		Status:      raw.Status,
		Line:        models.JoinLines(affectedLines(raw.ImpactedObjects)),
		StartDate:   periods[0].Begin,
		EndDate:     periods[len(periods)-1].End,
		Severity:    raw.Severity.Effect,
		Cause:       raw.Cause,
		Message:     title,
		Description: description,
	}, nil
}

// affectedLines dedups the impacted object ids, keeping first-seen order.
func affectedLines(objects []navitia.ImpactedObject) []string {
	seen := make(map[string]bool, len(objects))
	lines := make([]string, 0, len(objects))
	for _, obj := range objects {
		id := obj.PtObject.ID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		lines = append(lines, id)
	}
	return lines
}

// messageText picks the first message published on the given channel type.
// A missing message is not an error; the result is simply not Valid.
func messageText(messages []navitia.Message, channel string) (sql.NullString, error) {
	for _, msg := range messages {
		if !slices.Contains(msg.Channel.Types, channel) {
			continue
		}
		text, err := PlainText(msg.Text)
		if err != nil {
			return sql.NullString{}, err
		}
		return sql.NullString{String: text, Valid: true}, nil
	}
	return sql.NullString{}, nil
}
