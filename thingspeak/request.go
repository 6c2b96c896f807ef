package thingspeak

import (
	"fmt"
	"io"

	"github.com/google/go-querystring/query"
	"github.com/gr-butler/telemetry/aggregator"
)

/*

https://www.mathworks.com/help/thingspeak/writedata.html

GET https://api.thingspeak.com/update?api_key=<write key>&field1=<value>...

The channel used here has three fields:

KEY		Description				UNIT

field1	Relative humidity		0-100 %
field2	Temperature				Celsius
field3	Heat index				Celsius

*/

type updateQuery struct {
	APIKey      string `url:"api_key"`
	Humidity    string `url:"field1"`
	Temperature string `url:"field2"`
	HeatIndex   string `url:"field3"`
}

// Request is the wire form of one smoothed reading.
type Request struct {
	Path  string
	Query string
}

// FormatField renders a value at least 6 characters wide with 2 decimals,
// padded with spaces.
func FormatField(v float64) string {
	return fmt.Sprintf("%6.2f", v)
}

func NewRequest(endpoint string, apiKey string, r aggregator.SmoothedReading) (*Request, error) {
	q := updateQuery{
		APIKey:      apiKey,
		Humidity:    FormatField(r.Humidity),
		Temperature: FormatField(r.Temperature),
		HeatIndex:   FormatField(r.HeatIndex),
	}
	vals, err := query.Values(q)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	return &Request{
		Path:  endpoint,
		Query: vals.Encode(),
	}, nil
}

func (r *Request) URI() string {
	return r.Path + "?" + r.Query
}

// Write sends the request line and headers. Connection: close makes the
// server hang up once it has answered.
func (r *Request) Write(w io.Writer, host string) error {
	_, err := fmt.Fprintf(w, "GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", r.URI(), host)
	return err
}
