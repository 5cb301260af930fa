package cboe

import (
	"encoding/json"
	"errors"
)

var errNoData = errors.New(`missing "data" object`)

// {
//   "timestamp": "2026-10-16 16:15:02",
//   "data": {
//     "current_price": 6850.12,
//     "last_trade_time": "2026-10-16T16:14:59",
//     "options": [
//       {"option": "SPXW261231C06860000", "bid": 10.1, "ask": 10.4, "iv": 0.14, ...}
//     ]
//   }
// }
type envelope struct {
	Data *struct {
		CurrentPrice  json.RawMessage `json:"current_price"`
		LastTradeTime json.RawMessage `json:"last_trade_time"`
		Options       []option        `json:"options"`
	} `json:"data"`
}

type option struct {
	Option         string   `json:"option"`
	Bid            *float64 `json:"bid"`
	Ask            *float64 `json:"ask"`
	LastTradePrice *float64 `json:"last_trade_price"`
	IV             *float64 `json:"iv"`
	Delta          *float64 `json:"delta"`
	Volume         *float64 `json:"volume"`
	OpenInterest   *float64 `json:"open_interest"`
}
