package models

type Subscription struct {
	ID    uint   `gorm:"primaryKey;autoIncrement"`
	Token string `gorm:"uniqueIndex:idx_token_line;not null"`
	Line  string `gorm:"uniqueIndex:idx_token_line;not null"`
}

type Subscriptions []Subscription
