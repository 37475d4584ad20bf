// Package auth は外部IdPへのログイン委譲とセッション管理を提供する。
package auth

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials はIdPが認証情報を拒否した場合に返す。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIdentityExists はIdP側に同じメールアドレスのIDが既に存在する場合に返す。
	ErrIdentityExists = errors.New("identity already exists")
	// ErrIdentityRejected はIdPが入力内容（弱いパスワード等）を理由に作成を拒否した場合に返す。
	ErrIdentityRejected = errors.New("identity rejected")
)

// Identity は外部IdPが管理するユーザーIDを表す。
type Identity struct {
	UID   string
	Email string
}

// IdentityProvider は外部IdPのインターフェース。
// パスワード検証はIdPに委譲し、ローカルにはパスワードを保持しない。
type IdentityProvider interface {
	// Authenticate はメールアドレスとパスワードを検証する。
	// 認証情報が不正な場合はErrInvalidCredentialsを返す。
	Authenticate(ctx context.Context, email, password string) (*Identity, error)

	// CreateIdentity は新しいIDを作成する。
	// 既に登録済みの場合はErrIdentityExistsを返す。
	CreateIdentity(ctx context.Context, email, password string) (*Identity, error)

	// FindIdentityByEmail はメールアドレスでIDを検索する。見つからない場合はnilを返す。
	FindIdentityByEmail(ctx context.Context, email string) (*Identity, error)
}
