// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleAdmin は全ユーザーのレコードを参照・更新できる管理者ロール。
	RoleAdmin Role = "admin"
	// RoleUser は自身のレコードのみ参照できる一般ロール。
	RoleUser Role = "user"
)

// IsValid はロールが定義済みの値かどうかを返す。
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User はサービス利用ユーザーを表す。
// AuthUIDは外部IdP側のユーザーIDで、初回ログイン時にバックフィルされる。
type User struct {
	ID        int64
	Email     string
	Name      string
	Role      Role
	AuthUID   *string
	CreatedAt time.Time
}

// IsAdmin はユーザーが管理者かどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session はユーザーのログインセッションを表す。
// ロールはログイン時点の値を保持する。
type Session struct {
	ID        string
	UserID    int64
	Role      Role
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Principal はリクエスト単位で確定する認可主体。
// セッションミドルウェアが1回だけ生成し、コンテキスト経由でハンドラーに渡す。
type Principal struct {
	UserID int64
	Role   Role
}

// IsAdmin は管理者かどうかを返す。
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// OwnerIDs は一覧・集計クエリに適用するowner-setを返す。
// 管理者はnil（制約なし）、一般ユーザーは自身のIDのみ。
func (p Principal) OwnerIDs() []int64 {
	if p.IsAdmin() {
		return nil
	}
	return []int64{p.UserID}
}

// CanAccess は指定ownerのレコードにアクセスできるかを返す。
func (p Principal) CanAccess(ownerID int64) bool {
	return p.IsAdmin() || p.UserID == ownerID
}
