package handlers

import (
	"errors"
	"time"

	"fairchain/internal/money"
)

var errInvalidAmount = errors.New("invalid amount")
var errInvalidDeadline = errors.New("invalid deadline")

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseDeadline(raw string) (time.Time, error) {
	deadline, err := time.Parse(time.RFC3339, raw)
	if err != nil || !deadline.After(time.Now()) {
		return time.Time{}, errInvalidDeadline
	}
	return deadline, nil
}
