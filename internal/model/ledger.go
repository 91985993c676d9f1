package model

import "time"

type AdjustmentType string

const (
	AdjustmentManual AdjustmentType = "manual"
	AdjustmentBonus  AdjustmentType = "bonus"
	AdjustmentRefund AdjustmentType = "refund"
	AdjustmentDebit  AdjustmentType = "debit"
	AdjustmentTopup  AdjustmentType = "topup"
)

func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentManual, AdjustmentBonus, AdjustmentRefund, AdjustmentDebit, AdjustmentTopup:
		return true
	}
	return false
}

const ActorSystem = "system"

// WalletAccount holds an account's prepaid credits. Reserved credits are held
// for in-flight sends and still count towards the account's funds.
type WalletAccount struct {
	AccountID int64     `db:"account_id"`
	Balance   int64     `db:"balance"`
	Reserved  int64     `db:"reserved"`
	UpdatedAt time.Time `db:"updated_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (w WalletAccount) Funds() int64 { return w.Balance + w.Reserved }

// CreditHold is an open reservation. The row lives exactly as long as the
// amount sits in WalletAccount.Reserved.
type CreditHold struct {
	Ref       string    `db:"ref"`
	AccountID int64     `db:"account_id"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}

// CreditLedgerEntry is an immutable record of one balance change.
// NewBalance == PreviousBalance + Delta and NewBalance >= 0.
type CreditLedgerEntry struct {
	ID              int64          `db:"id"               json:"id"`
	AccountID       int64          `db:"account_id"       json:"account_id"`
	PreviousBalance int64          `db:"previous_balance" json:"previous_balance"`
	Delta           int64          `db:"delta"            json:"delta"`
	NewBalance      int64          `db:"new_balance"      json:"new_balance"`
	Reason          string         `db:"reason"           json:"reason"`
	Type            AdjustmentType `db:"type"             json:"type"`
	Actor           string         `db:"actor"            json:"actor"`
	Reference       string         `db:"reference"        json:"reference"`
	CreatedAt       time.Time      `db:"created_at"       json:"created_at"`
}
