package models

// Delivery is what a notification gateway reports back for one batch send.
type Delivery struct {
	Sent   []string
	Failed []FailedDelivery
}

type FailedDelivery struct {
	Token string
	Err   error
}

func (d *Delivery) MarkSent(tokens ...string) {
	d.Sent = append(d.Sent, tokens...)
}

func (d *Delivery) MarkFailed(err error, tokens ...string) {
	for _, token := range tokens {
		d.Failed = append(d.Failed, FailedDelivery{Token: token, Err: err})
	}
}
