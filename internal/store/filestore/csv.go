package filestore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/doubletake-dev/doubletake/internal/model"
)

// TransactionsHeader is the CSV header for transactions.csv.
const TransactionsHeader = "id,date,amount,description,category,is_duplicate,duplicate_of,duplicate_checked,duplicate_checked_at"

// ChecksHeader is the CSV header for duplicate-checks.csv.
const ChecksHeader = "id,transaction_id_1,transaction_id_2,date_tolerance_days,amount_tolerance_abs,amount_tolerance_pct,similarity_score,detected_at,user_decision,decided_at"

const dateFormat = "2006-01-02"

const (
	txNumFields    = 9
	colTxID        = 0
	colTxDate      = 1
	colTxAmount    = 2
	colTxDesc      = 3
	colTxCategory  = 4
	colTxIsDup     = 5
	colTxDupOf     = 6
	colTxChecked   = 7
	colTxCheckedAt = 8
)

const (
	chkNumFields    = 10
	colChkID        = 0
	colChkTx1       = 1
	colChkTx2       = 2
	colChkDateTol   = 3
	colChkAbsTol    = 4
	colChkPctTol    = 5
	colChkScore     = 6
	colChkDetected  = 7
	colChkDecision  = 8
	colChkDecidedAt = 9
)

// ReadTransactions reads all transactions from a transactions.csv reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = txNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var txs []model.Transaction
	for i, rec := range records[1:] {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}

// WriteTransactions writes transactions to a transactions.csv writer,
// including the header.
func WriteTransactions(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(TransactionsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txs {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(t model.Transaction) []string {
	row := make([]string, txNumFields)
	row[colTxID] = strconv.FormatInt(t.ID, 10)
	row[colTxDate] = t.Date.Format(dateFormat)
	row[colTxAmount] = t.Amount.StringFixed(2)
	row[colTxDesc] = t.Description
	row[colTxCategory] = t.Category
	row[colTxIsDup] = strconv.FormatBool(t.IsDuplicate)
	if t.DuplicateOf != 0 {
		row[colTxDupOf] = strconv.FormatInt(t.DuplicateOf, 10)
	}
	row[colTxChecked] = strconv.FormatBool(t.DuplicateChecked)
	if !t.DuplicateCheckedAt.IsZero() {
		row[colTxCheckedAt] = t.DuplicateCheckedAt.Format(time.RFC3339)
	}
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != txNumFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", txNumFields, len(record))
	}

	id, err := strconv.ParseInt(record[colTxID], 10, 64)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing id %q: %w", record[colTxID], err)
	}

	date, err := time.Parse(dateFormat, record[colTxDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colTxDate], err)
	}

	amount, err := decimal.NewFromString(record[colTxAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colTxAmount], err)
	}

	isDup, err := strconv.ParseBool(record[colTxIsDup])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing is_duplicate %q: %w", record[colTxIsDup], err)
	}

	var dupOf int64
	if record[colTxDupOf] != "" {
		dupOf, err = strconv.ParseInt(record[colTxDupOf], 10, 64)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing duplicate_of %q: %w", record[colTxDupOf], err)
		}
	}

	checked, err := strconv.ParseBool(record[colTxChecked])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing duplicate_checked %q: %w", record[colTxChecked], err)
	}

	var checkedAt time.Time
	if record[colTxCheckedAt] != "" {
		checkedAt, err = time.Parse(time.RFC3339, record[colTxCheckedAt])
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing duplicate_checked_at %q: %w", record[colTxCheckedAt], err)
		}
	}

	return model.Transaction{
		ID:                 id,
		Date:               date,
		Amount:             amount,
		Description:        record[colTxDesc],
		Category:           record[colTxCategory],
		IsDuplicate:        isDup,
		DuplicateOf:        dupOf,
		DuplicateChecked:   checked,
		DuplicateCheckedAt: checkedAt,
	}, nil
}

// ReadChecks reads all duplicate checks from a duplicate-checks.csv reader.
func ReadChecks(r io.Reader) ([]model.DuplicateCheck, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chkNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading checks CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var checks []model.DuplicateCheck
	for i, rec := range records[1:] {
		c, err := UnmarshalCheck(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// WriteChecks writes checks to a duplicate-checks.csv writer, including the
// header.
func WriteChecks(w io.Writer, checks []model.DuplicateCheck) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(ChecksHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, c := range checks {
		if err := cw.Write(MarshalCheck(c)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalCheck converts a DuplicateCheck to a CSV row.
func MarshalCheck(c model.DuplicateCheck) []string {
	row := make([]string, chkNumFields)
	row[colChkID] = strconv.FormatInt(c.ID, 10)
	row[colChkTx1] = strconv.FormatInt(c.TransactionID1, 10)
	row[colChkTx2] = strconv.FormatInt(c.TransactionID2, 10)
	row[colChkDateTol] = strconv.Itoa(c.DateToleranceDays)
	row[colChkAbsTol] = c.AmountToleranceAbs.String()
	row[colChkPctTol] = strconv.FormatFloat(c.AmountTolerancePct, 'f', -1, 64)
	row[colChkScore] = strconv.FormatFloat(c.SimilarityScore, 'f', -1, 64)
	row[colChkDetected] = c.DetectedAt.Format(time.RFC3339)
	row[colChkDecision] = string(c.Decision)
	if !c.DecidedAt.IsZero() {
		row[colChkDecidedAt] = c.DecidedAt.Format(time.RFC3339)
	}
	return row
}

// UnmarshalCheck converts a CSV row to a DuplicateCheck.
func UnmarshalCheck(record []string) (model.DuplicateCheck, error) {
	if len(record) != chkNumFields {
		return model.DuplicateCheck{}, fmt.Errorf("expected %d fields, got %d", chkNumFields, len(record))
	}

	id, err := strconv.ParseInt(record[colChkID], 10, 64)
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("parsing id %q: %w", record[colChkID], err)
	}

	tx1, err := strconv.ParseInt(record[colChkTx1], 10, 64)
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("parsing transaction_id_1 %q: %w", record[colChkTx1], err)
	}

	tx2, err := strconv.ParseInt(record[colChkTx2], 10, 64)
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("parsing transaction_id_2 %q: %w", record[colChkTx2], err)
	}

	dateTol, err := strconv.Atoi(record[colChkDateTol])
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("parsing date_tolerance_days %q: %w", record[colChkDateTol], err)
	}

	absTol, err := decimal.NewFromString(record[colChkAbsTol])
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("parsing amount_tolerance_abs %q: %w", record[colChkAbsTol], err)
	}

	pctTol, err := strconv.ParseFloat(record[colChkPctTol], 64)
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("parsing amount_tolerance_pct %q: %w", record[colChkPctTol], err)
	}

	score, err := strconv.ParseFloat(record[colChkScore], 64)
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("parsing similarity_score %q: %w", record[colChkScore], err)
	}

	detectedAt, err := time.Parse(time.RFC3339, record[colChkDetected])
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("parsing detected_at %q: %w", record[colChkDetected], err)
	}

	decision := model.Decision(record[colChkDecision])
	if decision != model.DecisionPending && !decision.Valid() {
		return model.DuplicateCheck{}, fmt.Errorf("unknown user_decision %q", record[colChkDecision])
	}

	var decidedAt time.Time
	if record[colChkDecidedAt] != "" {
		decidedAt, err = time.Parse(time.RFC3339, record[colChkDecidedAt])
		if err != nil {
			return model.DuplicateCheck{}, fmt.Errorf("parsing decided_at %q: %w", record[colChkDecidedAt], err)
		}
	}

	return model.DuplicateCheck{
		ID:                 id,
		TransactionID1:     tx1,
		TransactionID2:     tx2,
		DateToleranceDays:  dateTol,
		AmountToleranceAbs: absTol,
		AmountTolerancePct: pctTol,
		SimilarityScore:    score,
		DetectedAt:         detectedAt,
		Decision:           decision,
		DecidedAt:          decidedAt,
	}, nil
}
