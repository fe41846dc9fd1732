package navitia

// Wire types for the navitia "lines" endpoint. Only the fields we read are declared.

type linesEnvelope struct {
	Lines       []RawLine       `json:"lines"`
	Disruptions []RawDisruption `json:"disruptions"`
}

type RawDisruption struct {
	ID                 string              `json:"id"`
	Status             string              `json:"status"`
	Cause              string              `json:"cause"`
	Severity           Severity            `json:"severity"`
	ImpactedObjects    []ImpactedObject    `json:"impacted_objects"`
	ApplicationPeriods []ApplicationPeriod `json:"application_periods"`
	Messages           []Message           `json:"messages"`
}

type Severity struct {
	Effect string `json:"effect"`
}

type ImpactedObject struct {
	PtObject PtObject `json:"pt_object"`
}

type PtObject struct {
	ID string `json:"id"`
}

type ApplicationPeriod struct {
	Begin string `json:"begin"`
	End   string `json:"end"`
}

type Message struct {
	Text    string  `json:"text"`
	Channel Channel `json:"channel"`
}

type Channel struct {
	Types []string `json:"types"`
}

type RawLine struct {
	ID            string         `json:"id"`
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	Color         string         `json:"color"`
	TextColor     string         `json:"text_color"`
	PhysicalModes []PhysicalMode `json:"physical_modes"`
}

type PhysicalMode struct {
	ID string `json:"id"`
}

// Mode is the id of the first physical mode, or "" when the line has none.
func (l *RawLine) Mode() string {
	if len(l.PhysicalModes) == 0 {
		return ""
	}
	return l.PhysicalModes[0].ID
}
