package types

type Instrument struct {
	Id     int64  `json:"id"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}
