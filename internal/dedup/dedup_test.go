package dedup

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/doubletake-dev/doubletake/internal/model"
)

// Shared test helpers.

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(id int64, date time.Time, amount string) model.Transaction {
	return model.Transaction{ID: id, Date: date, Amount: dec(amount)}
}
