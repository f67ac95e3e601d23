package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createAccount = `
INSERT INTO accounts (user_id, email, hashed_password)
VALUES ($1, $2, $3)
RETURNING user_id, email, hashed_password, created_at`

type CreateAccountParams struct {
	UserID         pgtype.UUID
	Email          string
	HashedPassword string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRow(ctx, createAccount, arg.UserID, arg.Email, arg.HashedPassword)
	var i Account
	err := row.Scan(&i.UserID, &i.Email, &i.HashedPassword, &i.CreatedAt)
	return i, err
}

const getAccountByEmail = `
SELECT user_id, email, hashed_password, created_at
FROM accounts
WHERE email = $1`

func (q *Queries) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	row := q.db.QueryRow(ctx, getAccountByEmail, email)
	var i Account
	err := row.Scan(&i.UserID, &i.Email, &i.HashedPassword, &i.CreatedAt)
	return i, err
}

const getAccountByID = `
SELECT user_id, email, hashed_password, created_at
FROM accounts
WHERE user_id = $1`

func (q *Queries) GetAccountByID(ctx context.Context, userID pgtype.UUID) (Account, error) {
	row := q.db.QueryRow(ctx, getAccountByID, userID)
	var i Account
	err := row.Scan(&i.UserID, &i.Email, &i.HashedPassword, &i.CreatedAt)
	return i, err
}

const createUser = `
INSERT INTO users (user_id, username, email)
VALUES ($1, $2, $3)
RETURNING id, user_id, username, email, created_at`

type CreateUserParams struct {
	UserID   pgtype.UUID
	Username string
	Email    string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.UserID, arg.Username, arg.Email)
	var i User
	err := row.Scan(&i.ID, &i.UserID, &i.Username, &i.Email, &i.CreatedAt)
	return i, err
}

const createMessage = `
INSERT INTO messages (text, image_url, sender, user_id)
VALUES ($1, $2, $3, $4)
RETURNING seq, id, text, image_url, sender, user_id, created_at`

type CreateMessageParams struct {
	Text     pgtype.Text
	ImageUrl pgtype.Text
	Sender   string
	UserID   pgtype.UUID
}

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, createMessage, arg.Text, arg.ImageUrl, arg.Sender, arg.UserID)
	var i Message
	err := row.Scan(&i.Seq, &i.ID, &i.Text, &i.ImageUrl, &i.Sender, &i.UserID, &i.CreatedAt)
	return i, err
}

const listMessages = `
SELECT seq, id, text, image_url, sender, user_id, created_at
FROM messages
ORDER BY created_at ASC, seq ASC`

func (q *Queries) ListMessages(ctx context.Context) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessages)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		var i Message
		if err := rows.Scan(&i.Seq, &i.ID, &i.Text, &i.ImageUrl, &i.Sender, &i.UserID, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
