package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/despesas/internal/model"
)

// ErrDuplicateEmail はメールアドレスのユニーク制約違反を表す。
var ErrDuplicateEmail = errors.New("email already exists")

// pqUniqueViolation はPostgreSQLのunique_violationエラーコード。
const pqUniqueViolation = "23505"

// isUniqueViolation はエラーがユニーク制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// whereBuilder は $n プレースホルダ付きのWHERE句を組み立てる。
// 条件は全てANDで結合する。
type whereBuilder struct {
	conds []string
	args  []any
}

// add は条件を追加する。condの %s は次のプレースホルダ番号に置換される。
func (b *whereBuilder) add(cond string, arg any) {
	b.args = append(b.args, arg)
	b.conds = append(b.conds, fmt.Sprintf(cond, fmt.Sprintf("$%d", len(b.args))))
}

// addOwners はowner-set条件を追加する。nilの場合は制約なし。
func (b *whereBuilder) addOwners(ownerIDs []int64) {
	if ownerIDs == nil {
		return
	}
	b.add("user_id = ANY(%s)", pq.Array(ownerIDs))
}

// addPeriod は日付列に期間条件を追加する。
// 年月が揃っている場合はインデックスが効く範囲条件にする。
func (b *whereBuilder) addPeriod(column string, p model.Period) {
	if start, end, ok := p.Range(); ok {
		b.add(column+" >= %s", start.String())
		b.add(column+" < %s", end.String())
		return
	}
	if p.Year != 0 {
		b.add("EXTRACT(YEAR FROM "+column+") = %s", p.Year)
	}
	if p.Month != 0 {
		b.add("EXTRACT(MONTH FROM "+column+") = %s", p.Month)
	}
}

// addContains は部分一致条件を追加する。
func (b *whereBuilder) addContains(column, value string) {
	if value == "" {
		return
	}
	b.add(column+` LIKE %s ESCAPE '\'`, "%"+escapeLike(value)+"%")
}

// addEquals は完全一致条件を追加する。空文字列は制約なし。
func (b *whereBuilder) addEquals(column, value string) {
	if value == "" {
		return
	}
	b.add(column+" = %s", value)
}

// clause はWHERE句を返す。条件がない場合は空文字列を返す。
func (b *whereBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// setBuilder はUPDATE文のSET句を組み立てる。
type setBuilder struct {
	sets []string
	args []any
}

func (b *setBuilder) set(column string, arg any) {
	b.args = append(b.args, arg)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// stringPtr はsql.NullStringをポインタに変換する。
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
