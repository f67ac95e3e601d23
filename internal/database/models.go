package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Account struct {
	UserID         pgtype.UUID
	Email          string
	HashedPassword string
	CreatedAt      pgtype.Timestamptz
}

type User struct {
	ID        int64
	UserID    pgtype.UUID
	Username  string
	Email     string
	CreatedAt pgtype.Timestamptz
}

type Message struct {
	Seq       int64
	ID        pgtype.UUID
	Text      pgtype.Text
	ImageUrl  pgtype.Text
	Sender    string
	UserID    pgtype.UUID
	CreatedAt pgtype.Timestamptz
}
