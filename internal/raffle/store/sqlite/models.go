package sqlite

import "time"

type raffleRow struct {
	ID                   uint8    `gorm:"primaryKey"`
	EntranceFee          string   `gorm:"not null"`
	IntervalNS           int64    `gorm:"not null"`
	Players              []string `gorm:"serializer:json;not null"`
	State                string   `gorm:"not null"`
	LastTimestamp        time.Time
	RecentWinner         string `gorm:"not null"`
	Balance              string `gorm:"not null"`
	Coordinator          string `gorm:"not null"`
	GasLane              string `gorm:"not null"`
	SubscriptionID       string `gorm:"not null"`
	CallbackGasLimit     uint32
	NumWords             uint32
	RequestConfirmations uint16
	Round                uint64
}

func (raffleRow) TableName() string { return "raffle" }

type pendingRow struct {
	RequestID   string `gorm:"primaryKey"`
	Round       uint64
	PlayerCount int
	RequestedAt time.Time
}

func (pendingRow) TableName() string { return "pending_requests" }

type notificationRow struct {
	Seq         int64  `gorm:"primaryKey;autoIncrement"`
	ID          string `gorm:"uniqueIndex;not null"`
	Kind        string `gorm:"not null"`
	Round       uint64
	Account     string
	RequestID   string
	Amount      string `gorm:"not null"`
	OccurredAt  time.Time
	PublishedAt *time.Time `gorm:"index"`
}

func (notificationRow) TableName() string { return "notifications" }

// accountRow has no gorm defaults: a zero-valued Payable would otherwise be
// replaced by the column default on insert.
type accountRow struct {
	Address string `gorm:"primaryKey"`
	Balance string `gorm:"not null"`
	Payable bool   `gorm:"not null"`
}

func (accountRow) TableName() string { return "ledger_accounts" }
