package gateway

import "fmt"

// FormatMoney はセント単位の金額を "$35.00" 形式にする。
func FormatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s$%d.%02d", sign, minor/100, minor%100)
}

// DecimalString はプロバイダAPIに渡す "59.99" 形式の文字列を返す。
func DecimalString(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
