package bot

import (
	"errors"
	"fmt"
	"net/url"
)

// PostbackData is a parsed postback payload in URL query form,
// e.g. "action=explain".
type PostbackData struct {
	Action string
	Params url.Values
}

var errMissingAction = errors.New("missing action")

// ParsePostback parses postback data. The action parameter is required.
func ParsePostback(data string) (*PostbackData, error) {
	values, err := url.ParseQuery(data)
	if err != nil {
		return nil, fmt.Errorf("invalid postback format: %w", err)
	}

	action := values.Get("action")
	if action == "" {
		return nil, fmt.Errorf("invalid postback format: %w", errMissingAction)
	}
	values.Del("action")

	return &PostbackData{Action: action, Params: values}, nil
}
