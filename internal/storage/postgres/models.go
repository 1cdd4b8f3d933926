package postgres

import (
	"time"

	"hoodrate/internal/storage/schema"
)

type voteRow struct {
	UserID     string    `gorm:"column:user_id;primaryKey"`
	ReviewID   string    `gorm:"column:review_id;primaryKey"`
	ReviewType string    `gorm:"column:review_type;primaryKey"`
	VoteType   string    `gorm:"column:vote_type"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (voteRow) TableName() string { return schema.VotesTable }

type counterRow struct {
	HelpfulCount    int `gorm:"column:helpful_count"`
	NotHelpfulCount int `gorm:"column:not_helpful_count"`
}
