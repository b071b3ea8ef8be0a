// Package ussd implements the session navigation engine behind the USSD gateway.
package ussd

import "strings"

// Request is one gateway callback. Text is the full dialed path.
type Request struct {
	SessionID   string `json:"sessionId"`
	ServiceCode string `json:"serviceCode"`
	PhoneNumber string `json:"phoneNumber"`
	Text        string `json:"text"`
}

// Tokens splits the dialed path. An empty path has no tokens.
func (r Request) Tokens() []string {
	if r.Text == "" {
		return nil
	}
	return strings.Split(r.Text, "*")
}

// Reply is the next screen, or the final message when End is set.
type Reply struct {
	Body string
	End  bool
}

// Continue builds a reply that keeps the session open.
func Continue(body string) Reply { return Reply{Body: body} }

// Terminate builds a reply that ends the session.
func Terminate(body string) Reply { return Reply{Body: body, End: true} }

// String renders the gateway wire format.
func (r Reply) String() string {
	if r.End {
		return "END " + r.Body
	}
	return "CON " + r.Body
}

// Outcome labels the reply for metrics and logs.
func (r Reply) Outcome() string {
	if r.End {
		return "end"
	}
	return "con"
}
