package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout は日付のJSON表現。
const DateLayout = "2006-01-02"

// Date は日単位の日付を表す。
// JSONでは "YYYY-MM-DD" とRFC 3339の両方を受け付け、"YYYY-MM-DD" で出力する。
type Date struct {
	time.Time
}

// NewDate は年月日からUTCのDateを生成する。
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate は "YYYY-MM-DD" またはRFC 3339文字列をDateに変換する。
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// YearMonth は "YYYY-MM" 形式の月キーを返す。
func (d Date) YearMonth() string {
	return d.Format("2006-01")
}

// String は "YYYY-MM-DD" 形式の文字列を返す。
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON は "YYYY-MM-DD" 形式で出力する。
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON は "YYYY-MM-DD" またはRFC 3339を受け付ける。
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan はdatabase/sqlのScannerを実装する。
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case nil:
		*d = Date{}
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Value はdatabase/sql/driverのValuerを実装する。
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}
