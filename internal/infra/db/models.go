package db

import "time"

type VoterModel struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	FullName       string    `gorm:"not null"`
	Email          string    `gorm:"uniqueIndex;not null"`
	VoterCardID    string    `gorm:"uniqueIndex;not null"`
	NationalID     string    `gorm:"uniqueIndex;not null"`
	PasswordHash   string    `gorm:"not null"`
	FaceDescriptor string    `gorm:"type:text;not null"`
	HasVoted       bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (VoterModel) TableName() string { return "voters" }

type VoteAttemptModel struct {
	ID        int64     `gorm:"primaryKey"`
	VoterID   string    `gorm:"type:uuid;index;not null"`
	Choice    int64     `gorm:"not null"`
	Status    string    `gorm:"index;not null"`
	ErrorCode string    ``
	TxHash    string    `gorm:"index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (VoteAttemptModel) TableName() string { return "vote_attempts" }
