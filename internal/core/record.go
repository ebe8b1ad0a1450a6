package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Wire values for the kind field, as stored remotely.
const (
	wireIncome  = "RECEITA"
	wireExpense = "DESPESA"
)

// ErrMalformedRecord is returned when a stored child cannot become a Transaction.
var ErrMalformedRecord = errors.New("malformed transaction record")

type encodedRecord struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Value       json.Number `json:"value"`
	Type        string      `json:"type"`
	Date        string      `json:"date"`
	Category    string      `json:"category"`
}

type decodedRecord struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Value       decimal.NullDecimal `json:"value"`
	Type        string              `json:"type"`
	Date        string              `json:"date"`
	Category    string              `json:"category"`
}

// EncodeTransaction renders t in the stored JSON layout.
func EncodeTransaction(t Transaction) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	typ := wireExpense
	if t.Kind == Income {
		typ = wireIncome
	}
	return json.Marshal(encodedRecord{
		ID:          t.ID,
		Description: t.Description,
		Value:       json.Number(t.Amount.String()),
		Type:        typ,
		Date:        t.Date,
		Category:    t.Category,
	})
}

// DecodeTransaction parses a stored child. key fills a missing id.
func DecodeTransaction(key string, data []byte) (Transaction, error) {
	var rec decodedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if !rec.Value.Valid {
		return Transaction{}, fmt.Errorf("%w: missing value", ErrMalformedRecord)
	}
	amount, err := FromDecimal(rec.Value.Decimal)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	kind, err := ParseKind(rec.Type)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	id := rec.ID
	if id == "" {
		id = key
	}
	t := Transaction{
		ID:          id,
		Description: rec.Description,
		Amount:      amount,
		Kind:        kind,
		Date:        rec.Date,
		Category:    rec.Category,
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return t, nil
}

// ParseKind accepts the stored kind values and the Kind names, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case wireIncome, string(Income):
		return Income, nil
	case wireExpense, string(Expense):
		return Expense, nil
	default:
		return "", ErrInvalidKind
	}
}
